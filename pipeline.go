package caddymiabrelay

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/liujed/caddy-miabrelay/jsonutil"
	"go.uber.org/zap"
)

// Returned by a stage when the request is not for the relay and should go to
// the next handler in the chain.
var errPassThrough = errors.New("not a relay request")

// Describes how an inbound route maps onto the upstream API.
type route struct {
	name string

	// HTTP method of the upstream call.
	upstreamMethod string

	// Whether the record type is part of the upstream path.
	withType bool

	// Whether the challenge value is sent as the upstream request body.
	sendValue bool
}

var (
	routePresent = route{
		name:           "present",
		upstreamMethod: http.MethodPost,
		withType:       true,
		sendValue:      true,
	}
	routeCleanup = route{
		name:           "cleanup",
		upstreamMethod: http.MethodDelete,
		withType:       true,
	}
	routeSync = route{
		name:           "sync",
		upstreamMethod: http.MethodPut,
	}
)

var routes = map[string]route{
	"/present": routePresent,
	"/cleanup": routeCleanup,
	"/sync":    routeSync,
}

// State carried through the stages of a single request.
type exchange struct {
	req *http.Request

	// Headers set here before a stage returns are sent with the reply.
	w http.ResponseWriter

	// Authenticated user ID.
	user string

	route route

	// Decoded request body. Nil until the body has been read.
	body *RequestBody

	payload ChallengePayload
}

// A terminal response produced by a stage.
type reply struct {
	status      int
	contentType string
	header      http.Header
	body        []byte
}

func textReply(status int, text string) *reply {
	return &reply{
		status:      status,
		contentType: "text/plain; charset=utf-8",
		body:        []byte(text),
	}
}

func (r *reply) write(w http.ResponseWriter) error {
	for k, values := range r.header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", r.contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(r.status)
	_, err := w.Write(r.body)
	if err != nil {
		return fmt.Errorf("unable to write response body: %w", err)
	}
	return nil
}

// One step of request processing. A stage either enriches the exchange and
// returns (nil, nil) so the next stage runs, or ends the request by returning
// a reply or an error.
type stage func(ex *exchange) (*reply, error)

// The stages every request runs through, in order.
func (h *Handler) stages() []stage {
	return []stage{
		h.authenticate,
		h.matchRoute,
		h.decodeBody,
		h.validate,
		h.normalize,
		h.authorize,
		h.forward,
	}
}

// On failure, the basic-auth provider has already set the WWW-Authenticate
// challenge on the response.
func (h *Handler) authenticate(ex *exchange) (*reply, error) {
	user, ok, err := h.ClientRegistry.Authenticate(ex.w, ex.req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return textReply(http.StatusUnauthorized, "Unauthorized"), nil
	}
	ex.user = user
	addLogField(ex.req, zap.String("user_id", user))
	return nil, nil
}

func (h *Handler) matchRoute(ex *exchange) (*reply, error) {
	rt, exists := routes[ex.req.URL.Path]
	if !exists {
		return nil, errPassThrough
	}
	if ex.req.Method != http.MethodPost {
		r := textReply(
			http.StatusMethodNotAllowed,
			http.StatusText(http.StatusMethodNotAllowed),
		)
		r.header = http.Header{"Allow": []string{http.MethodPost}}
		return r, nil
	}
	ex.route = rt
	return nil, nil
}

func (h *Handler) decodeBody(ex *exchange) (*reply, error) {
	body, err := jsonutil.DecodeBody[RequestBody](ex.req.Body)
	if err != nil {
		return textReply(
			http.StatusBadRequest,
			"Unable to read request body as JSON",
		), nil
	}
	ex.body = &body
	return nil, nil
}

func (h *Handler) validate(ex *exchange) (*reply, error) {
	requireValue := ex.route != routeSync || !h.RelaxSyncValidation
	payload, err := ex.body.Validate(requireValue)
	if err != nil {
		return textReply(http.StatusBadRequest, err.Error()), nil
	}
	ex.payload = payload
	return nil, nil
}

func (h *Handler) normalize(ex *exchange) (*reply, error) {
	ex.payload = ex.payload.Normalize(h.Domain)
	addLogField(ex.req, zap.String("domain", ex.payload.FQDN))
	addLogField(ex.req, zap.String("record_type", ex.payload.Type))
	return nil, nil
}

func (h *Handler) authorize(ex *exchange) (*reply, error) {
	denyReason, err := h.ClientRegistry.AuthorizeChallengeDomain(
		ex.user,
		ex.payload.FQDN,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to authorize user for requested domain: %w", err)
	}
	if denyReason != "" {
		addLogField(ex.req, zap.String(logAuthorizationFailure, string(denyReason)))
		return textReply(http.StatusForbidden, http.StatusText(http.StatusForbidden)), nil
	}
	return nil, nil
}

func (h *Handler) forward(ex *exchange) (*reply, error) {
	value := ""
	if ex.route.sendValue {
		value = ex.payload.Value
	}

	path := ex.payload.UpstreamPath(ex.route.withType)
	respBody, err := h.Upstream.Client.Do(
		ex.req.Context(),
		ex.route.upstreamMethod,
		path,
		value,
	)
	if err != nil {
		return nil, fmt.Errorf("error relaying %s request: %w", ex.route.name, err)
	}

	return &reply{
		status:      http.StatusOK,
		contentType: "application/json",
		body:        jsonutil.AsJSON(respBody),
	}, nil
}
