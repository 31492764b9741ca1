package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promdata/mtr-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for normalization requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, _, store, err := newPipeline(ctx, cfg, 0)
		if err != nil {
			return err
		}
		defer store.Close()

		// Set up routes
		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /webhook/normalize", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Rows []struct {
					Name string `json:"name"`
					Unit string `json:"unit"`
				} `json:"rows"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if len(req.Rows) == 0 {
				http.Error(w, `{"error":"rows are required"}`, http.StatusBadRequest)
				return
			}

			rows := make([]model.RawRecord, len(req.Rows))
			for i, r := range req.Rows {
				rows[i] = model.RawRecord{
					Index:   i,
					Columns: []string{model.ColOriginalName, model.ColOriginalUnit},
					Values: map[string]string{
						model.ColOriginalName: r.Name,
						model.ColOriginalUnit: r.Unit,
					},
				}
			}

			jobID := uuid.NewString()

			// Run normalization asynchronously
			go func() {
				result, err := p.ProcessRows(ctx, rows)
				if err != nil {
					zap.L().Error("webhook normalization failed",
						zap.String("job", jobID),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("webhook normalization complete",
					zap.String("job", jobID),
					zap.Int64("accepted", result.Stats.Accepted),
					zap.Int64("rejected", result.Stats.Rejected),
				)
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "accepted",
				"job":    jobID,
				"rows":   len(rows),
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
