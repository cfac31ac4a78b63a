package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thesiscert/internal/http/middleware"
	"thesiscert/internal/service"
)

// Routes are the collaborators of the HTTP layer. DB may be nil when the process
// runs on in-memory repositories.
type Routes struct {
	DB       Pinger
	Service  service.CertificationService
	Tokens   middleware.TokenParser
	Gatherer prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers only
// translate between HTTP and the service; rules live in the service.
func RegisterRoutes(app *fiber.App, r Routes) {
	app.Get("/health", HealthCheck(r.DB))
	app.Get("/healthz", LivenessProbe())
	if r.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{})))
	}

	// Public verification surface.
	app.Get("/certificates/:ref", GetCertificate(r.Service))
	app.Post("/certificates/verify-file", VerifyFile(r.Service))
	app.Get("/theses/:id/onchain", OnChainStatus(r.Service))

	theses := app.Group("/theses", middleware.Authenticate(r.Tokens))
	theses.Post("/", SubmitThesis(r.Service))
	theses.Get("/", ListTheses(r.Service))
	theses.Get("/:id", GetThesis(r.Service))
	theses.Delete("/:id", DeleteThesis(r.Service))
	theses.Get("/:id/events", ThesisEvents(r.Service))
	theses.Post("/:id/verification", RequestVerification(r.Service))
	theses.Post("/:id/certify", CertifyThesis(r.Service))
	theses.Post("/:id/reject", RejectThesis(r.Service))
	theses.Post("/:id/revoke", RevokeThesis(r.Service))
}
