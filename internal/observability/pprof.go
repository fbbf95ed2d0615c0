package observability

import (
	nethttp "net/http"
	"net/http/pprof"
)

// Mount registers the enabled debug endpoints on mux.
func Mount(mux *nethttp.ServeMux, cfg Config) {
	if mux == nil || !cfg.EnablePprof {
		return
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
