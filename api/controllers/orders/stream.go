package orders

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Loxess-crl/carrito-compras/api/responses"
	"github.com/Loxess-crl/carrito-compras/internal/orders/stream"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/logger"
)

const streamHeartbeatInterval = 25 * time.Second

// Stream serves the order-list feed over server-sent events. Every event
// carries a full snapshot so clients never have to merge deltas.
func Stream(broker *stream.Broker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if broker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order stream unavailable"))
			return
		}

		actorID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		snapshots, err := broker.Subscribe(r.Context(), actorID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		heartbeat := time.NewTicker(streamHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			case snapshot, open := <-snapshots:
				if !open {
					return
				}
				payload, err := json.Marshal(snapshot)
				if err != nil {
					if logg != nil {
						logg.Error(r.Context(), "order stream encode", err)
					}
					continue
				}
				fmt.Fprintf(w, "event: orders\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
