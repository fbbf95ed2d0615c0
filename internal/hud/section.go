package hud

// Section is one independently refreshed region of the overlay.
type Section int

const (
	SectionArmor Section = iota
	SectionAmmo
	SectionMainHand
)

// Sections lists every section in render order.
var Sections = []Section{SectionArmor, SectionAmmo, SectionMainHand}

func (s Section) String() string {
	switch s {
	case SectionArmor:
		return "armor"
	case SectionAmmo:
		return "ammo"
	case SectionMainHand:
		return "main_hand"
	default:
		return "unknown"
	}
}

func sectionNames(sections []Section) []string {
	names := make([]string, 0, len(sections))
	for _, section := range sections {
		names = append(names, section.String())
	}
	return names
}
