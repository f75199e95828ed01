// Package crypto serves the price tracker REST API.
package crypto

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dense-analysis/pricetracker/internal/ingest"
	"github.com/dense-analysis/pricetracker/internal/route/util"
	"github.com/dense-analysis/pricetracker/internal/store"
	"github.com/dense-analysis/pricetracker/internal/view"
	"github.com/dense-analysis/pricetracker/pkg/lax"
)

// UpdateStartedMessage is returned when an ingestion run completes.
const UpdateStartedMessage = "Cryptocurrency price update process initiated successfully."

// Runner runs one ingestion.
type Runner interface {
	Run(ctx context.Context) ingest.Summary
}

// Viewer derives the read views.
type Viewer interface {
	LatestPrices(ctx context.Context) ([]view.AssetPriceView, error)
	TopCharts(ctx context.Context, count int) ([]view.ChartView, error)
}

// AssetDeleter removes an asset with all of its history.
type AssetDeleter interface {
	DeleteAsset(ctx context.Context, id int64) error
}

// Handlers holds the dependencies of the API routes.
type Handlers struct {
	runner  Runner
	viewer  Viewer
	deleter AssetDeleter
	logger  *slog.Logger
}

// New creates the API handlers.
func New(runner Runner, viewer Viewer, deleter AssetDeleter, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handlers{runner: runner, viewer: viewer, deleter: deleter, logger: logger}
}

// Register adds every API route to the router.
func (h *Handlers) Register(router *mux.Router) {
	api := router.PathPrefix("/api/crypto").Subrouter()

	api.Handle("/update-prices", lax.Wrap(lax.View{Post: h.updatePrices}))
	api.Handle("/latest-prices", lax.Wrap(lax.View{Get: h.latestPrices}))
	api.Handle("/top-coins-by-price-chart/{count}", lax.Wrap(lax.View{Get: h.topCharts}))
	api.Handle("/assets/{id}", lax.Wrap(lax.View{Delete: h.deleteAsset}))

	router.NotFoundHandler = http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		util.RespondNotFound(writer)
	})
}

func (h *Handlers) updatePrices(request *lax.Request) any {
	summary := h.runner.Run(request.Context())

	switch summary.Outcome {
	case ingest.OutcomeCompleted:
		return lax.MakeResponse(http.StatusOK, UpdateStartedMessage)
	case ingest.OutcomeCancelled:
		return lax.MakeEmptyResponse(http.StatusNoContent)
	case ingest.OutcomeBusy:
		return lax.MakeResponse(http.StatusConflict, ingest.ErrRunInProgress.Error())
	default:
		h.logger.Error("price update failed", "error", summary.Err)

		return errors.New("price update failed")
	}
}

func (h *Handlers) latestPrices(request *lax.Request) any {
	prices, err := h.viewer.LatestPrices(request.Context())

	if err != nil {
		h.logger.Error("loading latest prices failed", "error", err)

		return err
	}

	return prices
}

func (h *Handlers) topCharts(request *lax.Request) any {
	count, err := strconv.Atoi(request.Var("count"))

	if err != nil || count < 1 {
		return lax.MakeErrorListResponse(
			lax.Issue("count", "count must be a positive integer"),
		)
	}

	charts, err := h.viewer.TopCharts(request.Context(), count)

	if err != nil {
		h.logger.Error("loading price charts failed", "count", count, "error", err)

		return err
	}

	return charts
}

func (h *Handlers) deleteAsset(request *lax.Request) any {
	id, err := strconv.ParseInt(request.Var("id"), 10, 64)

	if err != nil {
		return lax.MakeResponse(http.StatusNotFound, "asset not found")
	}

	if err := h.deleter.DeleteAsset(request.Context(), id); err != nil {
		if errors.Is(err, store.ErrAssetNotFound) {
			return lax.MakeResponse(http.StatusNotFound, "asset not found")
		}

		h.logger.Error("deleting asset failed", "id", id, "error", err)

		return err
	}

	return nil
}
