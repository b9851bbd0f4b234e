package db

import (
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/tslumd/internal/httputil"
)

// AttachAdminRoutes mounts a tailSQL console for the packet log under
// /debug/tailsql/ and a JSON view of it at /debug/log.json.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Tally packet log",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleFunc("log.json", "logged packets as JSON", db.handleLog)
	return nil
}

func (db *DB) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 100, 1, 1000)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	address, err := httputil.QueryInt(r, "address", -1, 0, 126)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var recs []PacketRecord
	if address < 0 {
		recs, err = db.RecentPackets(r.Context(), limit)
	} else {
		recs, err = db.PacketsForAddress(r.Context(), uint8(address), limit)
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if recs == nil {
		recs = []PacketRecord{}
	}
	httputil.WriteJSONOK(w, recs)
}
