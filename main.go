package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"emberfall/server/internal/catalog"
	"emberfall/server/internal/decay"
	"emberfall/server/internal/telemetry"
	"emberfall/server/logging"
	"emberfall/server/logging/sinks"
)

const protocolVersion = 1

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func buildSinks(cfg logging.Config) []logging.NamedSink {
	var named []logging.NamedSink
	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout, cfg.Console)})
		case "json":
			named = append(named, logging.NamedSink{Name: "json", Sink: sinks.NewJSON(os.Stdout)})
		case "memory":
			named = append(named, logging.NamedSink{Name: "memory", Sink: sinks.NewMemorySink()})
		default:
			log.Printf("ignoring unknown log sink %q", name)
		}
	}
	return named
}

func main() {
	configPath := flag.String("config", "", "path to a TOML service config")
	listenFlag := flag.String("listen", "", "listen address, overrides the config file")
	flag.Parse()

	cfg := DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	if *listenFlag != "" {
		cfg.ListenAddr = *listenFlag
	}

	registry := decay.NewRegistry()
	doc, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	if err := doc.Apply(registry); err != nil {
		log.Fatalf("catalog: %v", err)
	}

	router := logging.NewRouter(logging.SystemClock{}, cfg.Logging, buildSinks(cfg.Logging))
	defer router.Close(context.Background())

	metrics := telemetry.NewCounters()
	logger := telemetry.WrapLogger(log.Default())
	hub := newHub(registry, cfg.Seed, cfg.TickRate, router, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hub.RunSimulation(ctx)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.DiagnosticsSnapshot()); err != nil {
			log.Printf("diagnostics encode failed: %v", err)
		}
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}

		clientID, sub := hub.Subscribe(conn)
		welcome, err := json.Marshal(hub.Welcome(clientID))
		if err != nil {
			log.Printf("welcome marshal failed: %v", err)
			hub.Disconnect(clientID)
			return
		}
		sub.mu.Lock()
		err = conn.WriteMessage(websocket.TextMessage, welcome)
		sub.mu.Unlock()
		if err != nil {
			hub.Disconnect(clientID)
			return
		}

		go func() {
			defer hub.Disconnect(clientID)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var cmd clientCommand
				if err := json.Unmarshal(data, &cmd); err != nil {
					log.Printf("client %s sent malformed command: %v", clientID, err)
					continue
				}
				ack := hub.HandleCommand(clientID, cmd)
				payload, err := json.Marshal(ack)
				if err != nil {
					log.Printf("ack marshal failed: %v", err)
					continue
				}
				sub.mu.Lock()
				err = conn.WriteMessage(websocket.TextMessage, payload)
				sub.mu.Unlock()
				if err != nil {
					return
				}
			}
		}()
	})

	log.Printf("decay service listening on %s (tick rate %d/s, %d chains)", cfg.ListenAddr, cfg.TickRate, len(registry.Chains()))
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
