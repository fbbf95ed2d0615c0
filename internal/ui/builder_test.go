package ui

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBuilderLastWriteWinsAndKeepsOrder(t *testing.T) {
	b := NewBuilder()
	b.Append("Pages/BetterHUD.ui")
	b.Set("#HeadValue.Text", "-")
	b.SetNull("#HeadIcon.ItemId")
	b.Set("#HeadValue.Text", " 50%")

	if got := b.Selectors(); len(got) != 2 || got[0] != "#HeadValue.Text" || got[1] != "#HeadIcon.ItemId" {
		t.Fatalf("unexpected selector order: %v", got)
	}
	update := b.Update(false)
	if text, ok := update.Text("#HeadValue.Text"); !ok || text != " 50%" {
		t.Fatalf("expected last write to win, got %q", text)
	}
	if value, ok := update.Value("#HeadIcon.ItemId"); !ok || value != nil {
		t.Fatalf("expected null icon, got %v", value)
	}
}

func TestEncodeProducesOrderedFieldsWithNulls(t *testing.T) {
	b := NewBuilder()
	b.Set("#Arrows.Visible", true)
	b.Set("#ArrowsValue.Text", "1,024")
	b.SetNull("#ArrowsIcon.ItemId")

	data, err := Encode(b.Update(false))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := `{"ver":1,"type":"ui","full":false,"fields":{"#Arrows.Visible":true,"#ArrowsValue.Text":"1,024","#ArrowsIcon.ItemId":null}}`
	if string(data) != want {
		t.Fatalf("unexpected payload:\n got %s\nwant %s", data, want)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if text, _ := decoded.Text("#ArrowsValue.Text"); text != "1,024" {
		t.Fatalf("unexpected decoded text %q", text)
	}
}

func TestMergeCopiesAssignments(t *testing.T) {
	base := NewBuilder()
	base.Set("#MainValue.Text", "-")
	extra := NewBuilder()
	extra.Append("Pages/Other.ui")
	extra.Set("#MainValue.Text", "80%")
	extra.Set("#MainHand.Visible", true)

	base.Merge(extra)
	if base.Len() != 2 {
		t.Fatalf("expected two selectors after merge, got %d", base.Len())
	}
	if value, _ := base.Value("#MainValue.Text"); value != "80%" {
		t.Fatalf("expected merged value, got %v", value)
	}
}

func TestSchemaDescribesMessage(t *testing.T) {
	schema, err := Schema()
	if err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal schema failed: %v", err)
	}
	for _, fragment := range []string{`"fields"`, `"document"`, `"Overlay UI Update"`} {
		if !strings.Contains(string(data), fragment) {
			t.Fatalf("expected schema to mention %s: %s", fragment, data)
		}
	}
}
