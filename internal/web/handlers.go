package web

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"patterndraw/internal/capture"
	"patterndraw/internal/criteria"
	"patterndraw/internal/workspace"
)

type workspaceIDInput struct {
	ID string `path:"id" doc:"Workspace id"`
}

type snapshotOutput struct {
	Body workspace.Snapshot
}

type captureStateOutput struct {
	Body capture.State
}

func registerSymbolHandlers(api huma.API, s *Server) {
	type symbolsOutput struct {
		Body struct {
			Symbols []string `json:"symbols"`
			Count   int      `json:"count"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-symbols", Method: http.MethodGet, Path: "/api/v1/symbols", Summary: "List selectable BIST symbols", Tags: []string{"Symbols"}},
		func(ctx context.Context, input *struct{}) (*symbolsOutput, error) {
			out := &symbolsOutput{}
			out.Body.Symbols = s.symbols.Load(ctx)
			out.Body.Count = len(out.Body.Symbols)
			return out, nil
		})

	type healthOutput struct {
		Body struct {
			Status     string `json:"status"`
			Workspaces int    `json:"workspaces"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Liveness check", Tags: []string{"Misc"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Workspaces = s.manager.Len()
			return out, nil
		})
}

type symbolBody struct {
	Symbol   string `json:"symbol" doc:"BIST code, e.g. THYAO"`
	Interval string `json:"interval,omitempty" enum:"1h,4h,1d,1wk,1mo" doc:"Candle interval (default 1d)"`
	Period   string `json:"period,omitempty" doc:"Look-back period (default 2y; intraday is capped to 60d)"`
}

func registerWorkspaceHandlers(api huma.API, s *Server) {
	type createInput struct {
		Body *symbolBody `required:"false"`
	}
	huma.Register(api, huma.Operation{OperationID: "create-workspace", Method: http.MethodPost, Path: "/api/v1/workspaces", Summary: "Create a workspace, optionally opening a symbol", Tags: []string{"Workspaces"}, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *createInput) (*snapshotOutput, error) {
			ws := s.manager.Create()
			if input.Body != nil && input.Body.Symbol != "" {
				if err := ws.SetSymbol(ctx, input.Body.Symbol, input.Body.Interval, input.Body.Period); err != nil {
					s.manager.Delete(ws.ID)
					return nil, mapErr(err)
				}
			}
			return &snapshotOutput{Body: ws.Snapshot()}, nil
		})

	type listOutput struct {
		Body struct {
			Workspaces []workspace.Snapshot `json:"workspaces"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-workspaces", Method: http.MethodGet, Path: "/api/v1/workspaces", Summary: "List workspaces, newest first", Tags: []string{"Workspaces"}},
		func(ctx context.Context, input *struct{}) (*listOutput, error) {
			out := &listOutput{}
			out.Body.Workspaces = []workspace.Snapshot{}
			for _, ws := range s.manager.List() {
				out.Body.Workspaces = append(out.Body.Workspaces, ws.Snapshot())
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-workspace", Method: http.MethodGet, Path: "/api/v1/workspaces/{id}", Summary: "Get workspace state", Tags: []string{"Workspaces"}},
		func(ctx context.Context, input *workspaceIDInput) (*snapshotOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &snapshotOutput{Body: ws.Snapshot()}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-workspace", Method: http.MethodDelete, Path: "/api/v1/workspaces/{id}", Summary: "Close a workspace", Tags: []string{"Workspaces"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *workspaceIDInput) (*struct{}, error) {
			if err := s.manager.Delete(input.ID); err != nil {
				return nil, mapErr(err)
			}
			return nil, nil
		})

	type setSymbolInput struct {
		ID   string `path:"id"`
		Body symbolBody
	}
	huma.Register(api, huma.Operation{OperationID: "set-symbol", Method: http.MethodPut, Path: "/api/v1/workspaces/{id}/symbol", Summary: "Open a symbol; resets points and range", Tags: []string{"Workspaces"}},
		func(ctx context.Context, input *setSymbolInput) (*snapshotOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			if err := ws.SetSymbol(ctx, input.Body.Symbol, input.Body.Interval, input.Body.Period); err != nil {
				return nil, mapErr(err)
			}
			return &snapshotOutput{Body: ws.Snapshot()}, nil
		})

	type viewInput struct {
		ID   string `path:"id"`
		Body struct {
			From int `json:"from" minimum:"0" doc:"First visible bar index"`
			To   int `json:"to" minimum:"1" doc:"One past the last visible bar index"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-visible-range", Method: http.MethodPut, Path: "/api/v1/workspaces/{id}/view", Summary: "Set the drawing chart's visible bars", Tags: []string{"Workspaces"}},
		func(ctx context.Context, input *viewInput) (*snapshotOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			ws.SetVisibleRange(input.Body.From, input.Body.To)
			return &snapshotOutput{Body: ws.Snapshot()}, nil
		})
}

func registerCaptureHandlers(api huma.API, s *Server) {
	type captureModeInput struct {
		ID   string `path:"id"`
		Body *struct {
			Active *bool `json:"active,omitempty" doc:"Omit to toggle"`
		} `required:"false"`
	}
	huma.Register(api, huma.Operation{OperationID: "set-capture-mode", Method: http.MethodPut, Path: "/api/v1/workspaces/{id}/capture-mode", Summary: "Enter, leave or toggle capture mode", Tags: []string{"Capture"}},
		func(ctx context.Context, input *captureModeInput) (*captureStateOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			if input.Body == nil || input.Body.Active == nil {
				return &captureStateOutput{Body: ws.ToggleCapture()}, nil
			}
			return &captureStateOutput{Body: ws.SetCaptureActive(*input.Body.Active)}, nil
		})

	type clickInput struct {
		ID   string `path:"id"`
		Body struct {
			X float64 `json:"x" doc:"Pixel x on the drawing chart"`
			Y float64 `json:"y" doc:"Pixel y on the drawing chart"`
		}
	}
	type clickOutput struct {
		Body struct {
			Result workspace.ClickResult `json:"result"`
			State  capture.State         `json:"state"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "click-drawing-chart", Method: http.MethodPost, Path: "/api/v1/workspaces/{id}/clicks", Summary: "Click the drawing chart", Tags: []string{"Capture"}},
		func(ctx context.Context, input *clickInput) (*clickOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &clickOutput{}
			out.Body.Result = ws.Click(input.Body.X, input.Body.Y)
			out.Body.State = ws.Capture()
			return out, nil
		})

	type pointInput struct {
		ID   string `path:"id"`
		Body struct {
			Time  int64   `json:"time" doc:"Bar time, unix seconds"`
			Price float64 `json:"price" exclusiveMinimum:"0"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "add-point", Method: http.MethodPost, Path: "/api/v1/workspaces/{id}/points", Summary: "Capture a point at a resolved time and price", Tags: []string{"Capture"}, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *pointInput) (*captureStateOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			if _, err := ws.AddPoint(input.Body.Time, input.Body.Price); err != nil {
				return nil, mapErr(err)
			}
			return &captureStateOutput{Body: ws.Capture()}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "undo-point", Method: http.MethodPost, Path: "/api/v1/workspaces/{id}/undo", Summary: "Remove the last captured point", Tags: []string{"Capture"}},
		func(ctx context.Context, input *workspaceIDInput) (*captureStateOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			ws.Undo()
			return &captureStateOutput{Body: ws.Capture()}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-points", Method: http.MethodPost, Path: "/api/v1/workspaces/{id}/clear", Summary: "Remove every captured point", Tags: []string{"Capture"}},
		func(ctx context.Context, input *workspaceIDInput) (*captureStateOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			ws.Clear()
			return &captureStateOutput{Body: ws.Capture()}, nil
		})

	type criteriaOutput struct {
		Body struct {
			Ratios   []criteria.Ratio     `json:"ratios"`
			Criteria []criteria.Criterion `json:"criteria"`
			Request  map[string]float64   `json:"request"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-criteria", Method: http.MethodGet, Path: "/api/v1/workspaces/{id}/criteria", Summary: "Derive search criteria from the points", Tags: []string{"Capture"}},
		func(ctx context.Context, input *workspaceIDInput) (*criteriaOutput, error) {
			ws, err := s.manager.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			d, err := ws.Criteria()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &criteriaOutput{}
			out.Body.Ratios = d.Ratios
			out.Body.Criteria = d.Criteria
			out.Body.Request = d.Map()
			return out, nil
		})
}
