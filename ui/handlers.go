package ui

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lassoc/adapters/stats/engine"
	"lassoc/app"
	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/domain/dataset"
	"lassoc/internal/errors"
)

// writeError maps application error codes onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeDataInvalid, errors.CodeConfigInvalid:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type variableInfo struct {
	Key         core.VariableKey `json:"key"`
	Levels      []dataset.Level  `json:"levels"`
	Cardinality int              `json:"cardinality"`
	Ordered     bool             `json:"ordered"`
}

func (s *Server) handleVariables(c *gin.Context) {
	frame := s.svc.Frame()
	vars := make([]variableInfo, 0, len(frame.Keys()))
	for _, key := range frame.Keys() {
		col, _ := frame.Column(key)
		vars = append(vars, variableInfo{
			Key:         key,
			Levels:      col.Variable.Levels,
			Cardinality: col.Variable.Cardinality(),
			Ordered:     col.Variable.Ordered,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rows": frame.Rows(), "variables": vars})
}

type analyzeRequest struct {
	Variables []string `json:"variables" binding:"required"`
	Measure   string   `json:"measure" binding:"required"`
}

func (r analyzeRequest) toApp() (app.AnalyzeRequest, error) {
	measure, err := assoc.ParseMeasure(r.Measure)
	if err != nil {
		return app.AnalyzeRequest{}, errors.ConfigInvalid(err.Error())
	}
	keys := make([]core.VariableKey, len(r.Variables))
	for i, v := range r.Variables {
		key, err := core.ParseVariableKey(v)
		if err != nil {
			return app.AnalyzeRequest{}, errors.ConfigInvalid(err.Error())
		}
		keys[i] = key
	}
	return app.AnalyzeRequest{Variables: keys, Measure: measure}, nil
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ConfigInvalid(err.Error()))
		return
	}
	appReq, err := req.toApp()
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := s.svc.Analyze(c.Request.Context(), appReq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type permutationRequest struct {
	analyzeRequest
	Iterations int        `json:"iterations"`
	Seed       *int64     `json:"seed"`
	Workers    int        `json:"workers"`
	Groups     [][]string `json:"groups"`
	Adjustment string     `json:"adjustment"`
}

func (r permutationRequest) toApp() (app.PermutationRequest, error) {
	base, err := r.analyzeRequest.toApp()
	if err != nil {
		return app.PermutationRequest{}, err
	}
	adjustment := assoc.Adjustment("")
	if r.Adjustment != "" {
		adjustment, err = assoc.ParseAdjustment(r.Adjustment)
		if err != nil {
			return app.PermutationRequest{}, errors.ConfigInvalid(err.Error())
		}
	}
	groups := make([][]core.VariableKey, len(r.Groups))
	for g, group := range r.Groups {
		groups[g] = make([]core.VariableKey, len(group))
		for i, v := range group {
			groups[g][i] = core.VariableKey(v)
		}
	}
	if len(groups) == 0 {
		groups = nil
	}
	return app.PermutationRequest{
		AnalyzeRequest: base,
		Iterations:     r.Iterations,
		Seed:           r.Seed,
		Workers:        r.Workers,
		Groups:         groups,
		Adjustment:     adjustment,
	}, nil
}

func (s *Server) handlePermutation(c *gin.Context) {
	var req permutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ConfigInvalid(err.Error()))
		return
	}
	appReq, err := req.toApp()
	if err != nil {
		writeError(c, err)
		return
	}
	tested, err := s.svc.PermutationTest(c.Request.Context(), appReq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tested)
}

type subgroupRequest struct {
	analyzeRequest
	Low          float64             `json:"low"`
	High         float64             `json:"high"`
	Key          string              `json:"key"`
	Significance *permutationRequest `json:"significance"`
	Alpha        float64             `json:"alpha"`
}

func (s *Server) handleSubgroups(c *gin.Context) {
	var req subgroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ConfigInvalid(err.Error()))
		return
	}
	base, err := req.analyzeRequest.toApp()
	if err != nil {
		writeError(c, err)
		return
	}

	appReq := app.SubgroupRequest{
		AnalyzeRequest: base,
		Options: engine.SubgroupOptions{
			Low:   req.Low,
			High:  req.High,
			Alpha: req.Alpha,
			Key:   core.VariableKey(req.Key),
		},
	}
	if req.Significance != nil {
		perm, err := req.Significance.toApp()
		if err != nil {
			writeError(c, err)
			return
		}
		appReq.Significance = &perm
	}

	resp, err := s.svc.BuildSubgroups(c.Request.Context(), appReq)
	if err != nil {
		writeError(c, err)
		return
	}

	counts := map[dataset.Level]int{}
	for _, l := range resp.Column.Labels {
		counts[l]++
	}
	body := gin.H{
		"column": resp.Column.Variable,
		"counts": counts,
		"result": resp.Result,
	}
	if resp.Tested != nil {
		body["tested"] = resp.Tested
	}
	c.JSON(http.StatusOK, body)
}

type discretizeRequest struct {
	Key    string    `json:"key" binding:"required"`
	Values []float64 `json:"values" binding:"required"`
	Bins   int       `json:"bins" binding:"required"`
	Method string    `json:"method"`
}

func (s *Server) handleDiscretize(c *gin.Context) {
	var req discretizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ConfigInvalid(err.Error()))
		return
	}
	method := dataset.BinMethod(req.Method)
	if req.Method == "" {
		method = dataset.BinEqualWidth
	}
	col, err := s.svc.Discretize(app.DiscretizeRequest{
		Key:    core.VariableKey(req.Key),
		Values: req.Values,
		Bins:   req.Bins,
		Method: method,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"column": col.Variable})
}

func (s *Server) handleGetResult(c *gin.Context) {
	id, err := core.ParseAnalysisID(c.Param("id"))
	if err != nil {
		writeError(c, errors.ConfigInvalid(err.Error()))
		return
	}
	res, err := s.svc.GetResult(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleListResults(c *gin.Context) {
	results, err := s.svc.ListResults(c.Request.Context(), 50)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
