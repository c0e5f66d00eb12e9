package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/services"
	"github.com/fleetfox/fleetfox/pkg/domain"
)

const signatureMaxSkew = 5 * time.Minute

type verdictIngestController struct {
	svc    services.VerdictService
	secret string
}

// NewVerdictIngestController accepts verdicts pushed by the workflow. An
// empty secret disables signature verification (dev mode).
func NewVerdictIngestController(svc services.VerdictService, secret string) *verdictIngestController {
	return &verdictIngestController{svc: svc, secret: secret}
}

func (h *verdictIngestController) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if h.secret != "" {
		if err := h.verifySignature(c, body); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}

	var ev domain.VerdictEvent
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	stored, err := h.svc.Ingest(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, services.ErrVerdictMissingTask) || errors.Is(err, services.ErrVerdictUnknownStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"stored": stored, "task_id": ev.TaskID})
}

func (h *verdictIngestController) verifySignature(c *gin.Context, body []byte) error {
	ts := strings.TrimSpace(c.GetHeader("X-FleetFox-Timestamp"))
	sig := strings.TrimSpace(c.GetHeader("X-FleetFox-Signature"))
	if ts == "" || sig == "" {
		return errors.New("missing signature headers")
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return errors.New("invalid timestamp")
	}
	if skew := time.Since(time.Unix(unix, 0)); skew > signatureMaxSkew || skew < -signatureMaxSkew {
		return errors.New("signature timestamp outside allowed window")
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write([]byte(ts + "."))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(sig))) {
		return errors.New("invalid signature")
	}
	return nil
}
