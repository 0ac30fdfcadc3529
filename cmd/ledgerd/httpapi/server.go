// Package httpapi exposes a minimal read-only chi-based query surface
// over the ledger core, grounded on the teacher's cmd/explorer/server.go
// handler style: small, composable chi.Router handlers that take a
// store.Snapshot and write JSON.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ledgercore/internal/blockchain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/schema"
)

// Server serves read-only queries against a Ledger.
type Server struct {
	ledger *blockchain.Ledger
	log    *logrus.Logger
	router chi.Router
}

// New builds a Server wired to ledger.
func New(ledger *blockchain.Ledger, log *logrus.Logger) *Server {
	s := &Server{ledger: ledger, log: log}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/status", s.handleStatus)
	r.Get("/blocks/{height}", s.handleBlockAtHeight)
	r.Get("/block_by_hash/{hash}", s.handleBlockByHash)
	r.Get("/tx/{hash}", s.handleTransaction)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	lastHash, err := s.ledger.LastHash()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	poolSize, err := s.ledger.PoolSize()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_hash": lastHash.String(),
		"pool_size": poolSize,
	})
}

func (s *Server) handleBlockAtHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(chi.URLParam(r, "height"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}
	sch := schema.NewSchema(s.ledger.Snapshot())
	hash, ok, err := sch.HashAtHeight(height)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no block at that height")
		return
	}
	s.writeBlock(w, sch, hash)
}

func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hash")
		return
	}
	sch := schema.NewSchema(s.ledger.Snapshot())
	s.writeBlock(w, sch, hash)
}

func (s *Server) writeBlock(w http.ResponseWriter, sch *schema.Schema, hash crypto.Hash) {
	header, ok, err := sch.Block(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	txHashes, err := sch.BlockTxHashes(header.Height)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hexHashes := make([]string, len(txHashes))
	for i, h := range txHashes {
		hexHashes[i] = h.String()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hash":       hash.String(),
		"proposer":   header.Proposer,
		"height":     header.Height,
		"tx_count":   header.TxCount,
		"prev_hash":  header.PrevHash.String(),
		"tx_hash":    header.TxHash.String(),
		"state_hash": header.StateHash.String(),
		"tx_hashes":  hexHashes,
	})
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hash")
		return
	}
	sch := schema.NewSchema(s.ledger.Snapshot())
	tx, ok, err := sch.Transaction(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	result, _, err := sch.TxResult(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	loc, _, err := sch.TxLocation(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"hash":       hash.String(),
		"service_id": tx.ServiceID,
		"public_key": tx.PublicKey.String(),
	}
	if result != nil {
		resp["result_kind"] = result.Kind
		resp["result_code"] = result.Code
		resp["result_description"] = result.Description
	}
	if loc != nil {
		resp["height"] = loc.Height
		resp["index"] = loc.Index
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseHash(s string) (crypto.Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.HashFromBytes(b), nil
}
