package app

import (
	"context"
	"time"
)

// Run serves the API until the context is cancelled, then drains in-flight
// requests and releases transport connections.
func (a *App) Run(ctx context.Context) error {
	a.logger.Debug("App.Run method started.")
	defer a.client.Close()

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.server.Start()
	}()

	a.logger.Info("🚀 Serving predictions.", "address", a.config.ListenAddr)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received, draining...")
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.server.Shutdown(graceful); err != nil {
			return err
		}
	}

	a.logger.Info("🏁 Server stopped.")
	return nil
}
