package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citylibrary/libraryops-backend/api/controllers"
	"github.com/citylibrary/libraryops-backend/api/middleware"
	"github.com/citylibrary/libraryops-backend/internal/catalog"
	"github.com/citylibrary/libraryops-backend/internal/chat"
	"github.com/citylibrary/libraryops-backend/internal/lending"
	"github.com/citylibrary/libraryops-backend/internal/members"
	"github.com/citylibrary/libraryops-backend/internal/notify"
	"github.com/citylibrary/libraryops-backend/internal/reporting"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
	pkgredis "github.com/citylibrary/libraryops-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Logger        *logger.Logger
	Catalog       catalog.Service
	Members       members.Service
	Lending       lending.Service
	Reporting     reporting.Service
	Chat          chat.Service
	Notifications notify.Service

	DBPinger    controllers.Pinger
	CachePinger controllers.Pinger

	// IdempotencyStore is optional; without it replay protection is off.
	IdempotencyStore pkgredis.IdempotencyStore

	// MetricsGatherer defaults to the process-wide registry.
	MetricsGatherer prometheus.Gatherer
}

// NewRouter wires middleware and endpoints.
func NewRouter(params RouterParams) http.Handler {
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS())
	if params.IdempotencyStore != nil {
		r.Use(middleware.Idempotency(params.IdempotencyStore, logg))
	}

	r.Get("/health/live", controllers.HealthLive())
	r.Get("/health/ready", controllers.HealthReady(params.DBPinger, params.CachePinger, logg))

	gatherer := params.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/books", func(books chi.Router) {
			books.Get("/", controllers.ListBooks(params.Catalog, logg))
			books.Get("/search", controllers.SearchBooks(params.Catalog, logg))
			books.Post("/", controllers.CreateBook(params.Catalog, logg))
			books.Get("/{bookId}", controllers.GetBook(params.Catalog, logg))
			books.Put("/{bookId}", controllers.UpdateBook(params.Catalog, logg))
			books.Delete("/{bookId}", controllers.DeleteBook(params.Catalog, logg))
		})

		api.Route("/members", func(m chi.Router) {
			m.Post("/register", controllers.RegisterMember(params.Members, logg))
			m.Get("/", controllers.ListMembers(params.Members, logg))
			m.Get("/search", controllers.SearchMembers(params.Members, logg))
			m.Get("/email/{email}", controllers.GetMemberByEmail(params.Members, logg))
			m.Get("/{memberId}", controllers.GetMember(params.Members, logg))
			m.Put("/{memberId}", controllers.UpdateMember(params.Members, logg))
			m.Delete("/{memberId}", controllers.DeleteMember(params.Members, logg))
			m.Get("/{memberId}/summary", controllers.MemberSummary(params.Members, params.Reporting, logg))
		})

		api.Route("/transactions", func(tx chi.Router) {
			tx.Get("/", controllers.ListTransactions(params.Reporting, logg))
			tx.Get("/active", controllers.ActiveTransactions(params.Reporting, logg))
			tx.Get("/dashboard", controllers.DashboardStats(params.Reporting, logg))
			tx.Post("/borrow", controllers.BorrowBook(params.Lending, logg))
			tx.Post("/return", controllers.ReturnBook(params.Lending, logg))
		})

		api.Post("/notifications/loan-reminder", controllers.SendLoanReminder(params.Notifications, logg))
		api.Post("/chat", controllers.Chat(params.Chat, logg))
	})

	return r
}
