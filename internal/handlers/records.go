package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/archive"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/orchestrator"
)

// RecordsHandler serves imports, read-all and save-all for every kind.
type RecordsHandler struct {
	logger       ectologger.Logger
	pipeline     *ingest.Pipeline
	orchestrator *orchestrator.Orchestrator
	archive      archive.Archive
}

// NewRecordsHandler creates a records handler. archive may be nil.
func NewRecordsHandler(logger ectologger.Logger, pipeline *ingest.Pipeline, orch *orchestrator.Orchestrator, arc archive.Archive) *RecordsHandler {
	return &RecordsHandler{
		logger:       logger,
		pipeline:     pipeline,
		orchestrator: orch,
		archive:      arc,
	}
}

// ImportResponse is the body of a successful import.
type ImportResponse struct {
	Summary *ingest.Summary      `json:"summary"`
	Archive *archive.Object      `json:"archive,omitempty"`
	Save    *orchestrator.Result `json:"save,omitempty"`
}

// ReadResponse is the body of a read-all.
type ReadResponse struct {
	Kind    models.Kind         `json:"kind"`
	Source  orchestrator.Source `json:"source"`
	Cached  bool                `json:"cached"`
	Warning string              `json:"warning,omitempty"`
	Records []models.Record     `json:"records"`
}

// RegisterRoutes registers the record routes
func (h *RecordsHandler) RegisterRoutes(g *echo.Group) {
	records := g.Group("/records")
	records.POST("/:kind/import", h.Import)
	records.GET("/:kind", h.ReadAll)
	records.PUT("/:kind", h.SaveAll)
}

// Import handles POST /records/:kind/import
func (h *RecordsHandler) Import(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := ParseKind(c)
	if err != nil {
		return err
	}
	year, err := QueryInt(c, "year", 0)
	if err != nil {
		return err
	}
	save, err := QueryBool(c, "save")
	if err != nil {
		return err
	}

	upload, err := readUpload(c, kind)
	if err != nil {
		return err
	}

	resp := ImportResponse{}
	if h.archive != nil {
		obj, err := h.archive.Put(ctx, upload)
		if err != nil {
			h.logger.WithContext(ctx).WithError(err).Warnf("failed to archive %s upload %q", kind, upload.Filename)
		} else {
			resp.Archive = &obj
		}
	}

	summary, err := h.pipeline.Run(ctx, ingest.Source{
		Kind:        kind,
		Filename:    upload.Filename,
		Data:        upload.Data,
		DefaultYear: year,
	})
	if err != nil {
		return err
	}
	resp.Summary = summary

	if !save {
		return SuccessResponse(c, resp)
	}

	result, err := h.orchestrator.SaveAll(ctx, summary.RecordSet)
	if err != nil {
		return err
	}
	resp.Save = &result
	return c.JSON(ResultStatus(result), resp)
}

// readUpload takes the multipart "file" field when present and the raw body
// otherwise.
func readUpload(c echo.Context, kind models.Kind) (archive.Upload, error) {
	upload := archive.Upload{Kind: kind, ReceivedAt: time.Now()}

	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return upload, httperror.WrapError(http.StatusBadRequest, err)
		}
		defer f.Close()

		upload.Filename = fh.Filename
		upload.ContentType = fh.Header.Get(echo.HeaderContentType)
		if upload.Data, err = io.ReadAll(f); err != nil {
			return upload, httperror.WrapError(http.StatusBadRequest, err)
		}
	} else {
		data, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return upload, httperror.WrapError(http.StatusBadRequest, err)
		}
		upload.Data = data
		upload.Filename = c.QueryParam("filename")
		upload.ContentType = c.Request().Header.Get(echo.HeaderContentType)
	}

	if len(upload.Data) == 0 {
		return upload, BadRequest("empty upload")
	}
	if upload.Filename == "" {
		upload.Filename = string(kind) + ".csv"
	}
	return upload, nil
}

// ReadAll handles GET /records/:kind
func (h *RecordsHandler) ReadAll(c echo.Context) error {
	kind, err := ParseKind(c)
	if err != nil {
		return err
	}

	result, err := h.orchestrator.ReadAll(c.Request().Context(), kind)
	if err != nil {
		return err
	}

	records := result.Set.Records
	if records == nil {
		records = []models.Record{}
	}
	return SuccessResponse(c, ReadResponse{
		Kind:    kind,
		Source:  result.Source,
		Cached:  result.Cached,
		Warning: result.Warning,
		Records: records,
	})
}

// SaveAll handles PUT /records/:kind. The body is a JSON array of records of
// the kind; records without an id are given one.
func (h *RecordsHandler) SaveAll(c echo.Context) error {
	kind, err := ParseKind(c)
	if err != nil {
		return err
	}

	var raws []json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&raws); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "body must be a JSON array of records")
	}
	records, err := models.DecodeRecords(kind, raws)
	if err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}
	models.AssignIDs(records)

	result, err := h.orchestrator.SaveAll(c.Request().Context(), models.RecordSet{Kind: kind, Records: records})
	if err != nil {
		return err
	}
	return c.JSON(ResultStatus(result), result)
}
