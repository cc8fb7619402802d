// Package v1 serves the mensa tools as a Connect unary JSON API.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	logcontext "github.com/va6996/mensaman/context"
	"github.com/va6996/mensaman/log"
	"github.com/va6996/mensaman/plugins/mensa"
)

const (
	ServiceName = "mensa.v1.MensaService"

	ListFacilitiesProcedure = "/" + ServiceName + "/ListFacilities"
	GetMenuProcedure        = "/" + ServiceName + "/GetMenu"
	GetWeekMenuProcedure    = "/" + ServiceName + "/GetWeekMenu"
)

type ListFacilitiesRequest struct {
	Filter string `json:"filter,omitempty"`
}

type ListFacilitiesResponse struct {
	Total      int              `json:"total"`
	Facilities []mensa.Facility `json:"facilities"`
}

type GetMenuRequest struct {
	APIName string `json:"apiName"`
	Date    string `json:"date,omitempty"`
}

type GetMenuResponse struct {
	Menu *mensa.DayMenu `json:"menu"`
}

type GetWeekMenuResponse struct {
	Week *mensa.WeekMenu `json:"week"`
}

// JSONCodec marshals plain Go structs. It replaces connect's protobuf JSON codec,
// so clients must send application/json.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MensaServer implements the MensaService procedures on top of the mensa tools.
type MensaServer struct {
	client *mensa.Client
}

func NewMensaServer(client *mensa.Client) *MensaServer {
	return &MensaServer{client: client}
}

func (s *MensaServer) ListFacilities(ctx context.Context, req *connect.Request[ListFacilitiesRequest]) (*connect.Response[ListFacilitiesResponse], error) {
	ctx = logcontext.EnsureRequestID(ctx)
	log.Infof(ctx, "ListFacilities filter=%q", req.Msg.Filter)

	out, err := s.client.FacilitiesTool.Execute(ctx, &mensa.FacilitiesInput{Filter: req.Msg.Filter})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !out.Success {
		return nil, connect.NewError(codeFor(out.ErrorKind), errors.New(out.Error))
	}
	return connect.NewResponse(&ListFacilitiesResponse{Total: out.Total, Facilities: out.Facilities}), nil
}

func (s *MensaServer) GetMenu(ctx context.Context, req *connect.Request[GetMenuRequest]) (*connect.Response[GetMenuResponse], error) {
	ctx = logcontext.EnsureRequestID(ctx)
	log.Infof(ctx, "GetMenu %s on %q", req.Msg.APIName, req.Msg.Date)

	out, err := s.client.MenuTool.Execute(ctx, &mensa.MenuInput{APIName: req.Msg.APIName, Date: req.Msg.Date})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !out.Success {
		return nil, connect.NewError(codeFor(out.ErrorKind), errors.New(out.Error))
	}
	return connect.NewResponse(&GetMenuResponse{Menu: out.Data}), nil
}

func (s *MensaServer) GetWeekMenu(ctx context.Context, req *connect.Request[GetMenuRequest]) (*connect.Response[GetWeekMenuResponse], error) {
	ctx = logcontext.EnsureRequestID(ctx)
	log.Infof(ctx, "GetWeekMenu %s on %q", req.Msg.APIName, req.Msg.Date)

	out, err := s.client.WeekMenuTool.Execute(ctx, &mensa.WeekMenuInput{APIName: req.Msg.APIName, Date: req.Msg.Date})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !out.Success {
		return nil, connect.NewError(codeFor(out.ErrorKind), errors.New(out.Error))
	}
	return connect.NewResponse(&GetWeekMenuResponse{Week: out.Data}), nil
}

// NewMensaServiceHandler builds an HTTP handler for the service and returns the path it should be mounted on.
func NewMensaServiceHandler(svc *MensaServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ListFacilitiesProcedure, connect.NewUnaryHandler(ListFacilitiesProcedure, svc.ListFacilities, opts...))
	mux.Handle(GetMenuProcedure, connect.NewUnaryHandler(GetMenuProcedure, svc.GetMenu, opts...))
	mux.Handle(GetWeekMenuProcedure, connect.NewUnaryHandler(GetWeekMenuProcedure, svc.GetWeekMenu, opts...))
	return "/" + ServiceName + "/", mux
}

// NewClient returns a typed client for one procedure of the service at baseURL.
func NewClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts ...connect.ClientOption) *connect.Client[Req, Res] {
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return connect.NewClient[Req, Res](httpClient, baseURL+procedure, opts...)
}

func codeFor(kind mensa.ErrorKind) connect.Code {
	switch kind {
	case mensa.KindValidation:
		return connect.CodeInvalidArgument
	case mensa.KindNotFound:
		return connect.CodeNotFound
	case mensa.KindTransport:
		return connect.CodeUnavailable
	case mensa.KindParse:
		return connect.CodeInternal
	default:
		return connect.CodeUnknown
	}
}
