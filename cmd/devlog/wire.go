package main

import (
	"context"
	"io"
	"time"

	"github.com/dropDatabas3/devlog/internal/config"
	"github.com/dropDatabas3/devlog/internal/identity/account"
	"github.com/dropDatabas3/devlog/internal/identity/brokerclient"
	"github.com/dropDatabas3/devlog/internal/identity/consent"
	"github.com/dropDatabas3/devlog/internal/identity/deletion"
	"github.com/dropDatabas3/devlog/internal/identity/linking"
	"github.com/dropDatabas3/devlog/internal/identity/localstate"
	"github.com/dropDatabas3/devlog/internal/identity/orchestrator"
	"github.com/dropDatabas3/devlog/internal/identity/providers"
	"github.com/dropDatabas3/devlog/internal/identity/providers/apple"
	"github.com/dropDatabas3/devlog/internal/identity/providers/github"
	"github.com/dropDatabas3/devlog/internal/identity/providers/google"
	"github.com/dropDatabas3/devlog/internal/identity/session"
	"github.com/dropDatabas3/devlog/internal/messaging"
	"github.com/dropDatabas3/devlog/internal/netmon"
	goidc "github.com/dropDatabas3/devlog/internal/oauth/google"
)

const checkInterval = 15 * time.Second

// runtime es el grafo de dependencias del cliente, armado a mano.
type runtime struct {
	store  *localstate.Store
	net    *netmon.Monitor
	orch   *orchestrator.Orchestrator
	facade *account.Facade
}

func build(ctx context.Context, cfg *config.ClientConfig, out io.Writer) (*runtime, error) {
	store, err := localstate.Open(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	mon := netmon.New(cfg.CheckAddr, checkInterval)
	mon.Start(ctx)

	sessions := session.New(cfg.APIKey)

	// el broker firma cada llamada con el ID token que mantiene el orquestador
	var orch *orchestrator.Orchestrator
	broker := brokerclient.New(cfg.BrokerURL, cfg.Region, func(ctx context.Context) (string, error) {
		return orch.IDToken(ctx)
	})

	browser := consent.SystemBrowser{Out: out}
	var adapters []providers.Adapter
	if cfg.Apple.ServicesID != "" {
		adapters = append(adapters, apple.New(ctx, apple.Config{ServicesID: cfg.Apple.ServicesID}, browser, store))
	}
	if cfg.Google.ClientID != "" {
		adapters = append(adapters, google.New(goidc.New(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, nil), browser))
	}
	if cfg.GitHub.ClientID != "" {
		adapters = append(adapters, github.New(cfg.GitHub.ClientID, browser, broker))
	}

	orch = orchestrator.New(orchestrator.Deps{
		Adapters:  providers.NewSet(adapters...),
		Sessions:  sessions,
		Broker:    broker,
		Store:     store,
		Messaging: messaging.NewDeviceTokens(store),
	})
	links := linking.New(linking.Deps{Orchestrator: orch, Sessions: sessions, Broker: broker})
	cascade := deletion.New(deletion.Deps{Orchestrator: orch, Revoker: links, Broker: broker, Sessions: sessions})

	return &runtime{
		store:  store,
		net:    mon,
		orch:   orch,
		facade: account.New(account.Deps{Net: mon, Auth: orch, Links: links, Deleter: cascade}),
	}, nil
}
