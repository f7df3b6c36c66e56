package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dqcheck-cli/internal/analysis"
	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
	"github.com/KaramelBytes/dqcheck-cli/internal/dedupe"
	"github.com/KaramelBytes/dqcheck-cli/internal/report"
	"github.com/KaramelBytes/dqcheck-cli/internal/store"
)

var errTooManyRecords = errors.New("too many records")

// RecordsRequest carries a table as JSON records.
type RecordsRequest struct {
	Name string `json:"name"`
	// Fields fixes the column order; otherwise it follows first appearance.
	Fields  []string         `json:"fields"`
	Records []map[string]any `json:"records"`
}

// DuplicatesRequest is the body of POST /v1/duplicates. Unset options take
// the server defaults.
type DuplicatesRequest struct {
	RecordsRequest
	Columns          []string `json:"columns"`
	Threshold        *int     `json:"threshold"`
	BlockSize        *int     `json:"block_size"`
	MinNonNull       *int     `json:"min_non_null"`
	MaxPairsPerBlock *int     `json:"max_pairs_per_block"`
	Scorer           string   `json:"scorer"`
}

// ScanRequest is the body of POST /v1/scan.
type ScanRequest struct {
	DuplicatesRequest
	Job  string `json:"job"`
	Save bool   `json:"save"`
}

func (s *Server) table(req RecordsRequest) (*dataset.Table, error) {
	limit := s.MaxRecords
	if limit <= 0 {
		limit = DefaultMaxRecords
	}
	if len(req.Records) > limit {
		return nil, fmt.Errorf("%w: %d > %d", errTooManyRecords, len(req.Records), limit)
	}
	name := req.Name
	if name == "" {
		name = "request"
	}
	return dataset.FromRecords(name, req.Fields, req.Records), nil
}

func (s *Server) dedupeOptions(req DuplicatesRequest) (dedupe.Options, error) {
	opt := s.Scan.Dedupe
	if req.Columns != nil {
		opt.Columns = req.Columns
	}
	if req.Threshold != nil {
		opt.Threshold = *req.Threshold
	}
	if req.BlockSize != nil {
		opt.BlockSize = *req.BlockSize
	}
	if req.MinNonNull != nil {
		opt.MinNonNull = *req.MinNonNull
	}
	if req.MaxPairsPerBlock != nil {
		opt.MaxPairsPerBlock = *req.MaxPairsPerBlock
	}
	if req.Scorer != "" {
		sc, err := dedupe.ScorerByName(req.Scorer)
		if err != nil {
			return opt, err
		}
		opt.Scorer = sc
	}
	return opt, nil
}

func (s *Server) Duplicates(c *gin.Context) {
	var req DuplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	t, err := s.table(req.RecordsRequest)
	if err != nil {
		s.fail(c, err)
		return
	}
	opt, err := s.dedupeOptions(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := dedupe.FindDuplicates(t, opt)
	if err != nil {
		s.fail(c, err)
		return
	}
	logStats(s.logger(), res.Stats)
	c.JSON(http.StatusOK, res)
}

// ProfileResponse is returned by POST /v1/profile.
type ProfileResponse struct {
	Profile *analysis.Report        `json:"profile"`
	Score   analysis.ScoreBreakdown `json:"score"`
}

func (s *Server) Profile(c *gin.Context) {
	var req RecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	t, err := s.table(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	prof := analysis.Profile(t, s.Scan.Profile)
	c.JSON(http.StatusOK, ProfileResponse{Profile: prof, Score: analysis.Breakdown(prof)})
}

// ScanResponse is returned by POST /v1/scan.
type ScanResponse struct {
	ID       string         `json:"id,omitempty"`
	Summary  report.Summary `json:"summary"`
	Markdown string         `json:"markdown"`
}

func (s *Server) ScanRecords(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	t, err := s.table(req.RecordsRequest)
	if err != nil {
		s.fail(c, err)
		return
	}
	opt := s.Scan
	if opt.Dedupe, err = s.dedupeOptions(req.DuplicatesRequest); err != nil {
		s.fail(c, err)
		return
	}
	rep, err := report.Run(t, opt)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := ScanResponse{Summary: rep.Summary(), Markdown: rep.Markdown()}
	if req.Save {
		if s.Store == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scan history is disabled"})
			return
		}
		b, err := json.Marshal(resp.Summary)
		if err != nil {
			s.fail(c, err)
			return
		}
		sc, err := s.Store.SaveScan(c.Request.Context(), store.Scan{
			Job:        req.Job,
			Source:     rep.Source,
			Rows:       rep.Rows,
			Score:      rep.Score.Score,
			Duplicates: rep.DuplicateCount(),
			Outliers:   len(rep.OutlierRows),
			Report:     b,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		resp.ID = sc.ID
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListScans(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan history is disabled"})
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	scans, err := s.Store.ListScans(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans})
}

func (s *Server) GetScan(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan history is disabled"})
		return
	}
	sc, err := s.Store.GetScan(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

// logStats reports the work of a duplicate search; skipped blocks are warnings.
func logStats(log *zap.Logger, st dedupe.Stats) {
	log.Debug("duplicates: search done",
		zap.Int("rows", st.Rows),
		zap.Int("candidates", st.Candidates),
		zap.Int("blocks", st.Blocks),
		zap.Int("comparisons", st.Comparisons),
		zap.Int("pairs", st.Pairs))
	for _, b := range st.SkippedBlocks {
		log.Warn("duplicates: block skipped",
			zap.String("prefix", b.Prefix),
			zap.Int("size", b.Size),
			zap.Int("comparisons", b.Comparisons))
	}
}
