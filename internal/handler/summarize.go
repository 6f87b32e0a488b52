package handler

import (
    "context"
    "io"
    "mime/multipart"
    "net/http"
    "net/url"
    "os"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/adas-events/internal/logging"
    "github.com/iliyamo/adas-events/internal/transcribe"
)

// Transcriber is implemented by *transcribe.AssemblyAI.
type Transcriber interface {
    Transcribe(ctx context.Context, src transcribe.Source) (string, error)
}

type SummarizeHandler struct {
    tr      Transcriber
    timeout time.Duration
    logger  *zap.Logger
    errs    errorResponder
}

// NewSummarizeHandler bounds each transcription by timeout.
func NewSummarizeHandler(tr Transcriber, timeout time.Duration, logger *zap.Logger) *SummarizeHandler {
    if tr == nil {
        panic("nil transcriber passed to NewSummarizeHandler")
    }
    if timeout <= 0 {
        timeout = 5 * time.Minute
    }
    logger = logging.OrNop(logger).Named("http")
    return &SummarizeHandler{tr: tr, timeout: timeout, logger: logger, errs: errorResponder{logger: logger}}
}

type summarizeRequest struct {
    URL      string `json:"url" form:"url"`
    Language string `json:"language" form:"language"`
}

// Summarize handles POST /api/summarize.  An uploaded audio file wins over
// a url; the response is the transcript as a PDF.
func (h *SummarizeHandler) Summarize(c echo.Context) error {
    var req summarizeRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid request body")
    }

    var src transcribe.Source
    if fh, err := c.FormFile("file"); err == nil {
        if !strings.HasPrefix(fh.Header.Get(echo.HeaderContentType), "audio/") {
            return badRequest(c, "Only audio files are accepted.")
        }
        path, err := saveUpload(fh)
        if err != nil {
            h.logger.Error("store upload", zap.Error(err))
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not store upload", "code": "internal"})
        }
        defer os.Remove(path)
        src.FilePath = path
    } else if validURL(req.URL) {
        src.URL = strings.TrimSpace(req.URL)
    } else {
        return badRequest(c, "No file or valid URL provided.")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
    defer cancel()
    text, err := h.tr.Transcribe(ctx, src)
    if err != nil {
        return h.errs.respond(c, err)
    }

    pdf, err := transcribe.RenderPDF(transcribe.TitleFor(req.Language), text)
    if err != nil {
        h.logger.Error("render transcript", zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not render transcript", "code": "render_failed"})
    }
    c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="transcript.pdf"`)
    return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func saveUpload(fh *multipart.FileHeader) (string, error) {
    src, err := fh.Open()
    if err != nil {
        return "", err
    }
    defer src.Close()

    dst, err := os.CreateTemp("", "adas-audio-*")
    if err != nil {
        return "", err
    }
    if _, err := io.Copy(dst, src); err != nil {
        dst.Close()
        os.Remove(dst.Name())
        return "", err
    }
    if err := dst.Close(); err != nil {
        os.Remove(dst.Name())
        return "", err
    }
    return dst.Name(), nil
}

func validURL(raw string) bool {
    u, err := url.ParseRequestURI(strings.TrimSpace(raw))
    if err != nil {
        return false
    }
    return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
