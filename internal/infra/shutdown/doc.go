// Package shutdown runs registered cleanup hooks when the process is asked
// to stop.
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown("http", srv.Shutdown)
//	h.OnShutdown("storage", func(context.Context) error { return store.Close() })
//	err := h.Wait()
//
// Hooks run in reverse registration order under one shared deadline.
package shutdown
