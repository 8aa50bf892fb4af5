package web

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"patterndraw/internal/rangesel"
	"patterndraw/internal/search"
	"patterndraw/pkg/model"
)

func registerSearchHandlers(api huma.API, s *Server) {
	type triggerOutput struct {
		Body struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "trigger-search", Method: http.MethodPost, Path: "/api/v1/workspaces/{id}/search", Summary: "Search for similar patterns; supersedes a running search", Tags: []string{"Search"}, DefaultStatus: http.StatusAccepted},
		func(ctx context.Context, input *workspaceIDInput) (*triggerOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			id, err := ws.Search()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &triggerOutput{}
			out.Body.JobID = id
			out.Body.Status = string(search.StatusRunning)
			return out, nil
		})

	type statusInput struct {
		ID   string `path:"id"`
		Wait bool   `query:"wait" doc:"Block until the latest search finishes"`
	}
	type statusOutput struct {
		Body search.Job
	}
	huma.Register(api, huma.Operation{OperationID: "get-search", Method: http.MethodGet, Path: "/api/v1/workspaces/{id}/search", Summary: "Latest search job and its results", Tags: []string{"Search"}},
		func(ctx context.Context, input *statusInput) (*statusOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			if input.Wait {
				job, err := ws.WaitSearch(ctx)
				if err != nil {
					return nil, mapErr(err)
				}
				return &statusOutput{Body: job}, nil
			}
			job, ok := ws.SearchStatus()
			if !ok {
				return nil, mapErr(search.ErrNoSearch)
			}
			return &statusOutput{Body: job}, nil
		})
}

type rangeBody struct {
	State rangesel.State  `json:"state"`
	Range *rangesel.Range `json:"range,omitempty" doc:"Set when the selection completed"`
}

type rangeOutput struct {
	Body rangeBody
}

func registerRangeHandlers(api huma.API, s *Server) {
	type rangeClickInput struct {
		ID   string `path:"id"`
		Body struct {
			X float64 `json:"x" doc:"Pixel x on the range chart"`
			Y float64 `json:"y" doc:"Pixel y on the range chart"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "click-range-chart", Method: http.MethodPost, Path: "/api/v1/workspaces/{id}/range/clicks", Summary: "Click the range chart", Tags: []string{"Range"}},
		func(ctx context.Context, input *rangeClickInput) (*rangeOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			st, r := ws.RangeClick(input.Body.X, input.Body.Y)
			return &rangeOutput{Body: rangeBody{State: st, Range: r}}, nil
		})

	type rangeSelectInput struct {
		ID   string `path:"id"`
		Body struct {
			Date string `json:"date" doc:"YYYY-MM-DD or RFC 3339"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "select-range-date", Method: http.MethodPost, Path: "/api/v1/workspaces/{id}/range/select", Summary: "Feed a resolved date into the range selector", Tags: []string{"Range"}},
		func(ctx context.Context, input *rangeSelectInput) (*rangeOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			t, err := parseDate(input.Body.Date)
			if err != nil {
				return nil, huma.Error400BadRequest("invalid date", err)
			}
			st, r := ws.RangeSelect(t)
			return &rangeOutput{Body: rangeBody{State: st, Range: r}}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reset-range", Method: http.MethodPost, Path: "/api/v1/workspaces/{id}/range/reset", Summary: "Clear the range selection", Tags: []string{"Range"}},
		func(ctx context.Context, input *workspaceIDInput) (*rangeOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &rangeOutput{Body: rangeBody{State: ws.RangeReset()}}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-range", Method: http.MethodGet, Path: "/api/v1/workspaces/{id}/range", Summary: "Range selection and analysis window", Tags: []string{"Range"}},
		func(ctx context.Context, input *workspaceIDInput) (*rangeOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			st, window := ws.Range()
			return &rangeOutput{Body: rangeBody{State: st, Range: &window}}, nil
		})

	type windowSearchOutput struct {
		Body struct {
			Window  rangesel.Range        `json:"window"`
			Results []model.SimilarResult `json:"results"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "search-range", Method: http.MethodPost, Path: "/api/v1/workspaces/{id}/range/search", Summary: "Find similar periods over the analysis window", Tags: []string{"Range", "Search"}},
		func(ctx context.Context, input *workspaceIDInput) (*windowSearchOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			_, window := ws.Range()
			results, err := ws.SearchWindow(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &windowSearchOutput{}
			out.Body.Window = window
			out.Body.Results = results
			return out, nil
		})
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
