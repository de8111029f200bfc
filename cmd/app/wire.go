//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/obara/supportdesk/internal/bootstrap"
	"github.com/obara/supportdesk/internal/infra/config"
	httpiface "github.com/obara/supportdesk/internal/interface/http"
	"github.com/obara/supportdesk/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideChatGPTClient,
		provideEmbedder,
		provideFaqSource,
		provideEmbeddingCache,
		provideNearestIndex,
		provideStore,
		provideRetriever,
		provideAnswerStore,
		provideChatService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
