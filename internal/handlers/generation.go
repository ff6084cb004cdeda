package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aistudio-dev/aistudio/db"
	"github.com/aistudio-dev/aistudio/internal/models"
	"github.com/aistudio-dev/aistudio/internal/pipeline"
	"github.com/aistudio-dev/aistudio/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	maxUploadSize    = 10 << 20 // 10MB
	defaultListLimit = 5
)

// ImageGenerator is the piece of the pipeline the handler depends on; tests
// substitute a fake to pin outcomes.
type ImageGenerator interface {
	Generate(ctx context.Context, inputPath, prompt string) (pipeline.Result, error)
}

var generator ImageGenerator

// ConfigureGenerations wires the pipeline; main calls it once at startup.
func ConfigureGenerations(g ImageGenerator) {
	generator = g
}

type GenerationForm struct {
	Prompt string `form:"prompt" binding:"required,max=1000"`
	Style  string `form:"style" binding:"required,oneof=photorealistic artistic abstract vintage modern"`
}

type GenerationResponse struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"imageUrl"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	CreatedAt time.Time `json:"createdAt"`
	Status    string    `json:"status"`
}

func CreateGeneration(ctx *gin.Context) {
	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized: No token provided"})
		return
	}

	file, err := ctx.FormFile("image")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Image is required"})
		return
	}

	contentType, err := sniffContentType(file)

	if err != nil {
		logrus.Errorf("Failed to read uploaded file: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	if contentType != "image/jpeg" && contentType != "image/png" {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Only JPEG and PNG images are allowed"})
		return
	}

	if file.Size > maxUploadSize {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Image size must be less than 10MB"})
		return
	}

	var form GenerationForm

	if err := ctx.ShouldBind(&form); err != nil {
		ctx.JSON(http.StatusBadRequest, validationErrorBody(err))
		return
	}

	// Stage the raw upload outside the served uploads directory so the
	// unprocessed original is never fetchable while the pipeline runs.
	uploadPath := filepath.Join(os.TempDir(), fmt.Sprintf("upload-%d-%s%s",
		time.Now().UnixMilli(), uuid.NewString(), filepath.Ext(file.Filename)))

	if err := ctx.SaveUploadedFile(file, uploadPath); err != nil {
		logrus.Errorf("Failed to store uploaded file: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	// The upload is only an input to the pipeline; discard it on every path.
	defer func() {
		if err := os.Remove(uploadPath); err != nil {
			logrus.Warnf("Failed to delete uploaded file %s: %v", uploadPath, err)
		}
	}()

	result, err := generator.Generate(ctx.Request.Context(), uploadPath, form.Prompt)

	if err != nil {
		if errors.Is(err, pipeline.ErrModelOverloaded) {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"message": "Model overloaded"})
			return
		}
		logrus.Errorf("Generation failed: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	params, err := json.Marshal(result.Params)

	if err != nil {
		logrus.Errorf("Failed to encode pipeline params: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	generation := models.Generation{
		UserID:   user.ID,
		ImageURL: "/uploads/" + filepath.Base(result.OutputPath),
		Prompt:   form.Prompt,
		Style:    form.Style,
		Status:   models.StatusSuccess,
		Params:   datatypes.JSON(params),
	}

	if err := db.DB.Create(&generation).Error; err != nil {
		logrus.Errorf("Failed to create generation: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	response := GenerationResponse{
		ID:        generation.ID,
		ImageURL:  generation.ImageURL,
		Prompt:    generation.Prompt,
		Style:     generation.Style,
		CreatedAt: generation.CreatedAt,
		Status:    generation.Status,
	}

	BroadcastGeneration(user.ID, response)

	ctx.JSON(http.StatusCreated, response)
}

func ListGenerations(ctx *gin.Context) {
	user, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized: No token provided"})
		return
	}

	limit := defaultListLimit

	if raw := ctx.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var generations []models.Generation

	if err := db.DB.Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&generations).Error; err != nil {
		logrus.Errorf("Failed to list generations: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	response := make([]GenerationResponse, 0, len(generations))

	for _, g := range generations {
		response = append(response, GenerationResponse{
			ID:        g.ID,
			ImageURL:  g.ImageURL,
			Prompt:    g.Prompt,
			Style:     g.Style,
			CreatedAt: g.CreatedAt,
			Status:    g.Status,
		})
	}

	ctx.JSON(http.StatusOK, response)
}

// sniffContentType detects the MIME type from the file contents rather than
// trusting the client-declared header.
func sniffContentType(file *multipart.FileHeader) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}

	return http.DetectContentType(buf[:n]), nil
}
