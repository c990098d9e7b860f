package controllers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/lintang-b-s/waymatcher/pkg/engine"
	helper "github.com/lintang-b-s/waymatcher/pkg/http/router/routerhelper"
	"go.uber.org/zap"
)

type matchingAPI struct {
	matchingService MatchingService
	validate        *requestValidator
	log             *zap.Logger
}

func New(matchingService MatchingService, log *zap.Logger) *matchingAPI {
	return &matchingAPI{
		matchingService: matchingService,
		validate:        newRequestValidator(),
		log:             log,
	}
}

func (api *matchingAPI) Routes(group *helper.RouteGroup) {
	group.POST("/matchTrack", api.matchTrack)
	group.POST("/matchTracks", api.matchTracks)
	group.GET("/graphs", api.graphs)
}

// matchTrack. match one track, the body is a matchTrackRequest.
// an empty branch list with no_match=true is a successful response.
func (api *matchingAPI) matchTrack(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request matchTrackRequest
	if err := readJSON(w, r, &request); err != nil {
		api.errorResponse(w, r, err)
		return
	}
	if err := api.validate.Struct(request); err != nil {
		api.errorResponse(w, r, err)
		return
	}
	req, err := request.toMatchRequest()
	if err != nil {
		api.errorResponse(w, r, trackError(err))
		return
	}

	res, err := api.matchingService.MatchTrack(r.Context(), req)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"data": NewMatchTrackResponse(res)}, nil); err != nil {
		api.serverErrorResponse(w, r, err)
	}
}

// matchTracks. match a batch, data[i] answers tracks[i]. a failing track does not fail the batch.
func (api *matchingAPI) matchTracks(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request matchTracksRequest
	if err := readJSON(w, r, &request); err != nil {
		api.errorResponse(w, r, err)
		return
	}
	if err := api.validate.Struct(request); err != nil {
		api.errorResponse(w, r, err)
		return
	}

	reqs := make([]engine.MatchRequest, len(request.Tracks))
	for i, t := range request.Tracks {
		req, err := t.toMatchRequest()
		if err != nil {
			api.errorResponse(w, r, batchIndexError(i, trackError(err)))
			return
		}
		reqs[i] = req
	}

	outcomes, err := api.matchingService.MatchTracks(r.Context(), reqs)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}

	items := make([]batchItemResponse, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			items[i] = batchItemResponse{Error: newErrorBody(o.Err)}
			continue
		}
		resp := NewMatchTrackResponse(o.Result)
		items[i] = batchItemResponse{Result: &resp}
	}

	if err := writeJSON(w, http.StatusOK, envelope{"data": items}, nil); err != nil {
		api.serverErrorResponse(w, r, err)
	}
}

func (api *matchingAPI) graphs(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	names := api.matchingService.Graphs()
	if names == nil {
		names = []string{}
	}
	if err := writeJSON(w, http.StatusOK, envelope{"data": graphsResponse{Graphs: names}}, nil); err != nil {
		api.serverErrorResponse(w, r, err)
	}
}
