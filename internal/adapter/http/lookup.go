package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

const defaultYears = 5

type seriesResponse struct {
	Location  string                `json:"location"`
	Date      string                `json:"date"`
	Hour      int                   `json:"hour"`
	YearsBack int                   `json:"years_back"`
	Slots     []slotResponse        `json:"slots"`
	Summary   *domain.SeriesSummary `json:"summary,omitempty"`
}

type slotResponse struct {
	Year        int                       `json:"year"`
	Date        string                    `json:"date"`
	Substituted bool                      `json:"substituted,omitempty"`
	Origin      domain.Origin             `json:"origin"`
	Observation *domain.HourlyObservation `json:"observation,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

func (s *Server) handleLocations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"locations": s.lookup.Locations()})
}

// handlePoint serves GET /api/v1/weather?location=&date=&hour=.
func (s *Server) handlePoint(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := domain.ParseDate(q.Get("date"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	hour, err := parseInt(q.Get("hour"), "hour")
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.lookup.LookupPoint(r.Context(), q.Get("location"), date, hour)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleHistory serves GET /api/v1/history?location=&date=&hour=&years=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := domain.ParseDate(q.Get("date"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	hour, err := parseInt(q.Get("hour"), "hour")
	if err != nil {
		s.writeError(w, err)
		return
	}
	years := defaultYears
	if v := q.Get("years"); v != "" {
		if years, err = parseInt(v, "years"); err != nil {
			s.writeError(w, err)
			return
		}
	}

	series, err := s.lookup.LookupSeries(r.Context(), q.Get("location"), date, hour, years)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := seriesResponse{
		Location:  series.Location,
		Date:      domain.FormatDate(series.Date),
		Hour:      series.Hour,
		YearsBack: series.YearsBack,
		Slots:     make([]slotResponse, len(series.Slots)),
		Summary:   series.Summary,
	}
	for i, sl := range series.Slots {
		resp.Slots[i] = slotResponse{
			Year:        sl.Year,
			Date:        domain.FormatDate(sl.Date),
			Substituted: sl.Substituted,
			Origin:      sl.Origin,
			Observation: sl.Observation,
			Error:       sl.Error,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseInt(v, name string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", domain.ErrInvalidRequest, name, v)
	}
	return n, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidRequest) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error("lookup failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
