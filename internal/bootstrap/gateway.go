// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"net/http"

	"github.com/AccelByte/extend-drop-farmer/internal/config"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// InitGateway creates the remote drops gateway client.
// Outgoing requests carry the trace context of the calling scope.
func InitGateway(cfg *config.Config) *gateway.HTTPClient {
	client := &http.Client{
		Timeout:   cfg.GatewayTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	gw := gateway.NewHTTPClient(client, gateway.HTTPClientConfig{
		BaseURL:         cfg.GatewayBaseURL,
		Token:           cfg.GatewayToken,
		MaxRetries:      cfg.GatewayMaxRetries,
		InitialInterval: cfg.GatewayRetryInterval,
	})

	logrus.Infof("initialized gateway client for %s (max retries %d)", cfg.GatewayBaseURL, cfg.GatewayMaxRetries)
	return gw
}
