package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/lacylights-patch/internal/cue"
	"github.com/bbernstein/lacylights-patch/internal/database/models"
	"github.com/bbernstein/lacylights-patch/internal/fixture"
	"github.com/bbernstein/lacylights-patch/internal/patch"
	"github.com/bbernstein/lacylights-patch/internal/services/network"
	"github.com/bbernstein/lacylights-patch/internal/services/show"
)

// AddressView is one address of a channel.
type AddressView struct {
	Offset  int    `json:"offset"`
	Address int    `json:"address"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Value   int    `json:"value"`
	Output  int    `json:"output"` // level currently on the wire
}

// ChannelView is the JSON form of a patched channel.
type ChannelView struct {
	ID           int           `json:"id"`
	Name         string        `json:"name"`
	Profile      string        `json:"profile"`
	Mode         string        `json:"mode"`
	Universe     int           `json:"universe"`
	StartAddress int           `json:"startAddress"`
	EndAddress   int           `json:"endAddress"`
	Addresses    []AddressView `json:"addresses"`
}

// CueView is the JSON form of a cue.
type CueView struct {
	Number      int                  `json:"number"`
	Name        string               `json:"name"`
	Universe    int                  `json:"universe"`
	ChannelData fixture.UniverseData `json:"channelData,omitempty"`
	CreatedAt   *time.Time           `json:"createdAt,omitempty"`
}

// UniverseView is a universe seen through the patch and on the wire.
type UniverseView struct {
	Universe int                  `json:"universe"`
	Patched  fixture.UniverseData `json:"patched"`
	Output   []int                `json:"output"`
}

func (s *Server) channelView(ch *fixture.Channel, universe int) ChannelView {
	rng := ch.AddressRange()
	output := ch.Output()
	addresses := make([]AddressView, 0, rng.Len())
	for _, fc := range ch.ChannelMap() {
		addresses = append(addresses, AddressView{
			Offset:  fc.AddressOffset,
			Address: rng.Initial + fc.AddressOffset,
			Name:    fc.Name,
			Type:    string(fc.Type),
			Value:   output[fc.AddressOffset],
			Output:  int(s.dmx.GetChannelValue(universe, rng.Initial+fc.AddressOffset)),
		})
	}

	profileName := ""
	if p := ch.Profile(); p != nil {
		profileName = p.Name
	}

	return ChannelView{
		ID:           ch.ID(),
		Name:         ch.Name(),
		Profile:      profileName,
		Mode:         ch.Mode(),
		Universe:     universe,
		StartAddress: rng.Initial,
		EndAddress:   rng.Final,
		Addresses:    addresses,
	}
}

func liveCueView(c *cue.Cue, universe int) CueView {
	return CueView{Number: c.ID(), Name: c.Name(), Universe: universe, ChannelData: c.ChannelData()}
}

func storedCueView(row models.Cue) CueView {
	createdAt := row.CreatedAt
	return CueView{Number: row.Number, Name: row.Name, Universe: row.Universe, CreatedAt: &createdAt}
}

// intParam parses a positive-or-zero integer path parameter.
func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, errBadRequest)
	}
	return v, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, errBadRequest)
	}
	return nil
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.opts.Version,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"channels":  s.show.Registry().Len(),
		"universes": s.dmx.UniverseCount(),
		"artnet":    s.dmx.IsEnabled(),
		"dmxActive": s.dmx.IsActive(),
		"dmxRate":   s.dmx.GetCurrentRate(),
	})
}

// handleBlackout zeroes the DMX output. Channel values are left as they are
// and are sent again on their next write.
func (s *Server) handleBlackout(w http.ResponseWriter, r *http.Request) {
	s.dmx.Blackout()
	writeJSON(w, http.StatusOK, map[string]bool{"blackout": true})
}

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.show.ListDefinitions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req show.DefinitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	def, err := s.show.CreateDefinition(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := s.show.DeleteDefinition(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) channelResponse(ch *fixture.Channel) (ChannelView, error) {
	universe, err := s.show.Registry().UniverseOf(ch.ID())
	if err != nil {
		return ChannelView{}, err
	}
	return s.channelView(ch, universe), nil
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	registry := s.show.Registry()

	channels := registry.Channels()
	if raw := r.URL.Query().Get("universe"); raw != "" {
		universe, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, fmt.Errorf("invalid universe %q: %w", raw, errBadRequest))
			return
		}
		channels = registry.InUniverse(universe)
	}

	views := make([]ChannelView, 0, len(channels))
	for _, ch := range channels {
		view, err := s.channelResponse(ch)
		if err != nil {
			// Unpatched while listing
			continue
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePatchChannel(w http.ResponseWriter, r *http.Request) {
	var req show.PatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ch, err := s.show.PatchFixture(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.channelView(ch, req.Universe))
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	ch, err := s.show.Registry().Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.channelResponse(ch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// updateChannelRequest changes the fields that are present.
type updateChannelRequest struct {
	Name   *string `json:"name"`
	Number *int    `json:"number"`
}

func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateChannelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Number != nil && *req.Number < 1 {
		writeError(w, fmt.Errorf("invalid number %d: %w", *req.Number, errBadRequest))
		return
	}

	ch, err := s.show.Registry().Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Number != nil {
		if ch, err = s.show.RenumberChannel(r.Context(), id, *req.Number); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Name != nil {
		if ch, err = s.show.RenameChannel(r.Context(), ch.ID(), *req.Name); err != nil {
			writeError(w, err)
			return
		}
	}
	view, err := s.channelResponse(ch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUnpatchChannel(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.show.Unpatch(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setAddressRequest struct {
	Value int `json:"value"`
}

func (s *Server) handleSetAddress(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := strconv.Atoi(chi.URLParam(r, "offset"))
	if err != nil {
		writeError(w, fmt.Errorf("invalid offset %q: %w", chi.URLParam(r, "offset"), errBadRequest))
		return
	}
	var req setAddressRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.show.SetAddress(r.Context(), id, offset, req.Value); err != nil {
		writeError(w, err)
		return
	}
	ch, err := s.show.Registry().Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.channelResponse(ch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetUniverse(w http.ResponseWriter, r *http.Request) {
	universe, err := intParam(r, "universe")
	if err != nil || universe < 1 {
		writeError(w, fmt.Errorf("invalid universe %q: %w", chi.URLParam(r, "universe"), errBadRequest))
		return
	}
	if !s.show.Registry().HasUniverse(universe) {
		writeError(w, fmt.Errorf("universe %d: %w", universe, patch.ErrOutOfUniverse))
		return
	}

	writeJSON(w, http.StatusOK, UniverseView{
		Universe: universe,
		Patched:  s.show.Registry().Snapshot(universe),
		Output:   s.dmx.GetUniverse(universe),
	})
}

func (s *Server) handleListCues(w http.ResponseWriter, r *http.Request) {
	rows, err := s.show.ListCues(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]CueView, 0, len(rows))
	for _, row := range rows {
		views = append(views, storedCueView(row))
	}
	writeJSON(w, http.StatusOK, views)
}

type recordCueRequest struct {
	Universe int    `json:"universe"`
	Name     string `json:"name"`
}

func (s *Server) handleRecordCue(w http.ResponseWriter, r *http.Request) {
	var req recordCueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.show.RecordCue(r.Context(), req.Universe, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, liveCueView(c, req.Universe))
}

func (s *Server) handleDeleteCue(w http.ResponseWriter, r *http.Request) {
	number, err := intParam(r, "number")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.show.DeleteCue(r.Context(), number); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecallCue(w http.ResponseWriter, r *http.Request) {
	number, err := intParam(r, "number")
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.show.RecallCue(r.Context(), number)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CueView{Number: c.ID(), Name: c.Name()})
}

func (s *Server) handleListInterfaces(w http.ResponseWriter, r *http.Request) {
	opts, err := network.BroadcastOptions()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

type broadcastRequest struct {
	Address string `json:"address"`
}

type broadcastResponse struct {
	Address string `json:"address"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleGetBroadcast(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, broadcastResponse{Address: s.dmx.GetBroadcastAddress(), Enabled: s.dmx.IsEnabled()})
}

func (s *Server) handleSetBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := network.ValidateBroadcast(req.Address); err != nil {
		writeError(w, fmt.Errorf("%v: %w", err, errBadRequest))
		return
	}
	if err := s.dmx.ReloadBroadcastAddress(req.Address); err != nil {
		writeError(w, err)
		return
	}
	if s.settings != nil {
		if err := s.settings.SaveBroadcastAddress(r.Context(), req.Address); err != nil {
			writeError(w, fmt.Errorf("failed to save broadcast address: %w", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, broadcastResponse{Address: req.Address, Enabled: s.dmx.IsEnabled()})
}

// handleResetBroadcast forgets the saved address and returns to the default.
func (s *Server) handleResetBroadcast(w http.ResponseWriter, r *http.Request) {
	if s.settings != nil {
		if err := s.settings.ClearBroadcastAddress(r.Context()); err != nil {
			writeError(w, fmt.Errorf("failed to clear broadcast address: %w", err))
			return
		}
	}
	if err := s.dmx.ReloadBroadcastAddress(s.opts.DefaultBroadcast); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, broadcastResponse{Address: s.opts.DefaultBroadcast, Enabled: s.dmx.IsEnabled()})
}
