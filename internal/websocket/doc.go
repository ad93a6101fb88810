// Package websocket pushes the status log and result updates to the browser
// GUI.
//
// A Hub fans messages out to every connected Client and keeps the most recent
// status log lines so a page opened mid-session sees what already happened.
// The hub satisfies the processor's Reporter interface, so status entries go
// straight from processing to the GUI:
//
//	hub := websocket.NewHub(logger, websocket.HubOptions{HistorySize: 200})
//	hub.Start()
//	defer hub.Stop()
//	router.Handle("/ws", websocket.NewHandler(hub, cfg.WebSocket, cfg.Security.AllowedOrigins, logger))
package websocket
