/***************************************************************
 *
 * Copyright (C) 2025, StudyShelf Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

// Package web_api wires the service's HTTP surface: the gin engine, request
// logging, metrics, admin authentication and the REST handlers.
package web_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	uberatomic "go.uber.org/atomic"

	"github.com/studyshelf/studyshelf/metrics"
	"github.com/studyshelf/studyshelf/param"
)

var serviceStart = uberatomic.NewTime(time.Now())

// ConfigureMetrics attaches the prometheus middleware and the health/wake
// probes to the engine.
func ConfigureMetrics(engine *gin.Engine) {
	prometheusMonitor := ginprometheus.NewPrometheus("gin")
	prometheusMonitor.Use(engine)

	engine.GET("/health", func(ctx *gin.Context) {
		healthStatus := metrics.GetHealthStatus()
		ctx.JSON(http.StatusOK, healthStatus)
	})
	engine.GET("/wake", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status": "awake",
			"uptime": time.Since(serviceStart.Load()).Round(time.Second).String(),
		})
	})
}

// GetEngine builds the service's gin engine with recovery, request logging
// through logrus, and the metrics/probe endpoints attached.
func GetEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	webLogger := log.WithFields(log.Fields{"daemon": "gin"})
	engine.Use(func(ctx *gin.Context) {
		startTime := time.Now()

		ctx.Next()

		latency := time.Since(startTime)
		webLogger.WithFields(log.Fields{"method": ctx.Request.Method,
			"status":   ctx.Writer.Status(),
			"time":     latency.String(),
			"client":   ctx.RemoteIP(),
			"resource": ctx.Request.URL.Path},
		).Info("Served Request")
	})

	ConfigureMetrics(engine)
	metrics.SetComponentHealthStatus(metrics.Server_Web, metrics.StatusOK, "")
	return engine
}

// RunEngine serves the engine until the context is cancelled, then shuts the
// listener down gracefully.
func RunEngine(ctx context.Context, engine *gin.Engine) error {
	addr := fmt.Sprintf("%v:%v", param.Server_Address.GetString(), param.Server_WebPort.GetInt())
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Debugln("Starting web engine at address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		metrics.SetComponentHealthStatus(metrics.Server_Web, metrics.StatusCritical, err.Error())
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
