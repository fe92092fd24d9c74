package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/flowsend/flowsend/backend/internal/handler/chat"
	circleHandler "github.com/flowsend/flowsend/backend/internal/handler/circle"
	rampHandler "github.com/flowsend/flowsend/backend/internal/handler/ramp"
	sponsorshipHandler "github.com/flowsend/flowsend/backend/internal/handler/sponsorship"
	middlewarePkg "github.com/flowsend/flowsend/backend/internal/middleware"
	circleService "github.com/flowsend/flowsend/backend/internal/service/circle"
	"github.com/flowsend/flowsend/backend/internal/service/intent"
	"github.com/flowsend/flowsend/backend/internal/service/orchestrator"
	rampService "github.com/flowsend/flowsend/backend/internal/service/ramp"
	"github.com/flowsend/flowsend/backend/internal/service/sponsorship"
)

// Dependencies carries the optional services the router wires. Nil entries
// degrade their routes to not-configured responses rather than panics.
type Dependencies struct {
	Classifier   intent.Classifier
	Assistant    chatHandler.Assistant
	Ledger       *circleService.Client
	Issuer       *rampService.Issuer
	URLBuilder   *rampService.URLBuilder
	Checker      *sponsorship.Checker
	USDCContract string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	orch := orchestrator.NewService(ledgerOrNil(deps.Ledger))
	chat := chatHandler.New(deps.Classifier, deps.Assistant, orch)
	circle := circleHandler.New(deps.Ledger)

	r.Route("/api", func(api chi.Router) {
		chat.RegisterRoutes(api)
		circle.RegisterRoutes(api)

		if deps.URLBuilder != nil {
			ramp := rampHandler.New(issuerOrNil(deps.Issuer), deps.URLBuilder)
			ramp.RegisterRoutes(api)
		}

		sponsorshipHandler.New(deps.Checker, deps.USDCContract).RegisterRoutes(api)
	})

	return r
}

// ledgerOrNil avoids handing the orchestrator a typed-nil interface value.
func ledgerOrNil(client *circleService.Client) orchestrator.Ledger {
	if client == nil {
		return nil
	}
	return client
}

func issuerOrNil(issuer *rampService.Issuer) rampHandler.Issuer {
	if issuer == nil {
		return nil
	}
	return issuer
}
