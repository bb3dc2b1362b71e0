package api

import (
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func (s *Server) registerDNSRoutes() {
	s.mux.HandleFunc("GET /dnsrecords", s.handleListAllDNSRecords)
	s.mux.HandleFunc("GET /namespaces/{ns}/dnsrecords", s.handleListDNSRecords)
	s.mux.HandleFunc("GET /namespaces/{ns}/dnsrecords/{name}", s.handleGetDNSRecord)
	s.mux.HandleFunc("POST /namespaces/{ns}/dnsrecords/{name}", s.handleCreateDNSRecord)
	s.mux.HandleFunc("PUT /namespaces/{ns}/dnsrecords/{name}", s.handleUpdateDNSRecord)
	s.mux.HandleFunc("DELETE /namespaces/{ns}/dnsrecords/{name}", s.handleDeleteDNSRecord)
}

func (s *Server) handleListAllDNSRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := store.ListAllDNSRecords(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleListDNSRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := store.ListDNSRecords(s.kv, pathValue(r, "ns"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetDNSRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := store.GetDNSRecord(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreateDNSRecord(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var rec types.DNSRecord
	if err := decodeJSON(r, &rec); err != nil {
		writeError(w, err)
		return
	}
	rec.Namespace, rec.Name = ns, name
	rec.CreatedAt = time.Now()

	if err := store.CreateDNSRecord(s.kv, &rec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &rec)
}

func (s *Server) handleUpdateDNSRecord(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var incoming types.DNSRecord
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, err)
		return
	}
	incoming.Namespace, incoming.Name = ns, name

	if _, err := store.GetDNSRecord(s.kv, ns, name); err != nil {
		writeError(w, err)
		return
	}
	if err := store.PutDNSRecord(s.kv, &incoming); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &incoming)
}

func (s *Server) handleDeleteDNSRecord(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")
	if err := store.DeleteDNSRecord(s.kv, ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
