// Package analyze assesses a biology specimen or experiment photo for a
// student or a teacher.
package analyze

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/logger"
	"github.com/kailas-cloud/bioscope/internal/metrics"
)

// Role is the audience the analysis is tuned for.
type Role string

// Supported roles.
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// DefaultSystemInstruction is the analysis preamble; {role} is replaced by the role context.
const DefaultSystemInstruction = "You are BioScope AI, a high-school biology assistant. " +
	"Answer as an expert {role}. Analyze the image using high-school biology knowledge. " +
	"Give an accurate assessment and suitable questions or suggestions."

// DefaultTemperature is the sampling temperature for image analysis.
const DefaultTemperature float32 = 0.5

type roleProfile struct {
	context       string
	defaultPrompt string
}

var roles = map[Role]roleProfile{
	RoleStudent: {
		context: "self-study student",
		defaultPrompt: "Is this specimen or experiment correct? " +
			"Explain the phenomenon and give me 2 review questions.",
	},
	RoleTeacher: {
		context: "subject teacher",
		defaultPrompt: "Evaluate the accuracy. If it is correct, suggest a follow-up activity. " +
			"If it is wrong, explain the underlying biological error.",
	},
}

// ParseRole validates a role name. An empty name selects RoleStudent.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleStudent, nil
	}
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roles[r]; !ok {
		return "", fmt.Errorf("%q: %w", s, domain.ErrInvalidRole)
	}
	return r, nil
}

// DefaultPrompt returns the prompt used for r when the caller gives none.
func DefaultPrompt(r Role) string { return roles[r].defaultPrompt }

// Request is one image to analyze.
type Request struct {
	Image  []byte
	Prompt string
	Role   Role
}

// Result is the model's free-text assessment.
type Result struct {
	Analysis string
	Role     Role
	Prompt   string
	Format   string // png or jpeg
}

// Service analyzes images with a multimodal model.
type Service struct {
	gen         Generator
	instruction string
	temperature float32
}

// New creates an analyzer with DefaultSystemInstruction and DefaultTemperature.
func New(gen Generator) *Service {
	return &Service{
		gen:         gen,
		instruction: DefaultSystemInstruction,
		temperature: DefaultTemperature,
	}
}

// WithSystemInstruction overrides the preamble template.
func (s *Service) WithSystemInstruction(tmpl string) *Service {
	if tmpl != "" {
		s.instruction = tmpl
	}
	return s
}

// WithTemperature overrides the sampling temperature.
func (s *Service) WithTemperature(t float32) *Service {
	s.temperature = t
	return s
}

// Analyze validates the image and sends it with the prompt in a single call.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	role := req.Role
	if role == "" {
		role = RoleStudent
	}
	profile, ok := roles[role]
	if !ok {
		return Result{}, fmt.Errorf("%q: %w", role, domain.ErrInvalidRole)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(req.Image))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrInvalidImage, err)
	}
	if format != "png" && format != "jpeg" {
		return Result{}, fmt.Errorf("%w: %s is not png or jpeg", domain.ErrInvalidImage, format)
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = profile.defaultPrompt
	}

	temp := s.temperature
	res, err := s.gen.Generate(ctx, domain.GenerationRequest{
		SystemInstruction: strings.ReplaceAll(s.instruction, "{role}", profile.context),
		Parts: []domain.Part{
			domain.TextPart(prompt),
			domain.ImagePart(req.Image, "image/"+format),
		},
		Temperature: &temp,
	})
	if err != nil {
		metrics.ImageAnalysesTotal.WithLabelValues(string(role), "error").Inc()
		return Result{}, fmt.Errorf("analyze image: %w", err)
	}
	metrics.ImageAnalysesTotal.WithLabelValues(string(role), "ok").Inc()
	domain.UsageFromContext(ctx).AddGenerationTokens(res.TotalTokens)

	logger.FromContext(ctx).Info("image analyzed",
		zap.String("role", string(role)),
		zap.String("format", format),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
	)
	return Result{Analysis: res.Text, Role: role, Prompt: prompt, Format: format}, nil
}
