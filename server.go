// server.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"codepad/internal/completion"
	"codepad/internal/metrics"
	"codepad/internal/websocket"
)

// newHTTPHandler serves the suggestion endpoint and metrics next to the
// websocket RPC.
func newHTTPHandler(app *App, log *zap.Logger) (http.Handler, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	gen, err := app.loadGenerator()
	if err != nil {
		return nil, err
	}
	completion.NewHandler(gen).Register(r)

	if path := app.config.Server.MetricsPath; path != "" {
		r.GET(path, gin.WrapH(metrics.Handler()))
	}
	return r, nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetHeader("X-Request-ID")))
	}
}

// serve runs the app until ctx is cancelled.
func serve(ctx context.Context, app *App, log *zap.Logger) error {
	if err := app.startup(ctx); err != nil {
		return err
	}

	handler, err := newHTTPHandler(app, log)
	if err != nil {
		app.shutdown(context.Background())
		return err
	}

	wsServer := websocket.NewServer(app, websocket.Options{
		AuthKey:     app.config.Server.AuthKey,
		CallTimeout: time.Minute,
		Logger:      log.Named("websocket"),
	})
	app.setEventHubBroadcaster(wsServer)

	addr, err := wsServer.Start(ctx, app.config.Server.Addr, handler)
	if err != nil {
		app.shutdown(context.Background())
		return err
	}
	fmt.Printf("CODEPAD_READY:addr=%s\n", addr)

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := wsServer.Stop(stopCtx); err != nil {
		log.Warn("websocket server stop failed", zap.Error(err))
	}
	return app.shutdown(stopCtx)
}
