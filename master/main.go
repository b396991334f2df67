package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

func main() {
	port := flag.Int("port", 4100, "listen port")
	ttl := flag.Duration("ttl", 2*time.Minute, "world registration TTL")
	flag.Parse()

	reg := NewRegistry(*ttl)
	defer reg.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /worlds", handleListWorlds(reg))
	mux.HandleFunc("POST /worlds/register", handleRegisterWorld(reg))
	mux.HandleFunc("POST /worlds/heartbeat", handleWorldHeartbeat(reg))
	mux.HandleFunc("GET /health", handleHealth())

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("[master] listening on %s (ttl=%s)", addr, *ttl)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("[master] server error: %v", err)
	}
}
