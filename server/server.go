package server

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"voicedesk/audio"
	"voicedesk/dialogue"
	"voicedesk/log"
	"voicedesk/speech"
	"voicedesk/transcriber"
)

// Server is the request/response embedding of the voice flow: speech
// recognition, dialogue, and synthesis as three stateless endpoints. The
// client carries conversation history between calls as the flat
// transcript text.
type Server struct {
	app    *fiber.App
	stt    transcriber.Transcriber
	engine *dialogue.Engine
	synth  speech.Synthesizer
}

func New(stt transcriber.Transcriber, engine *dialogue.Engine, synth speech.Synthesizer) *Server {
	s := &Server{
		app:    fiber.New(fiber.Config{DisableStartupMessage: true, BodyLimit: 32 << 20}),
		stt:    stt,
		engine: engine,
		synth:  synth,
	}
	s.app.Post("/speech-to-text", s.speechToText)
	s.app.Post("/query-ai", s.queryAI)
	s.app.Post("/text-to-speech", s.textToSpeech)
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	log.Infof("voice service listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) speechToText(c *fiber.Ctx) error {
	header, err := c.FormFile("audio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`audio` file field is required"})
	}
	file, err := header.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable upload"})
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable upload"})
	}

	pcm, err := convertToLinear16(data)
	if err != nil {
		log.Warnf("rejecting upload %s: %v", header.Filename, err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	transcript, err := s.stt.Recognize(c.Context(), pcm, transcriber.Config{
		SampleRate: TargetSampleRate,
		Language:   "en-US",
		Punctuate:  true,
	})
	if err != nil {
		log.Errorf("recognition failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "speech recognition failed"})
	}
	if transcript == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no speech detected in audio"})
	}
	return c.JSON(fiber.Map{"transcript": transcript})
}

type queryAIRequest struct {
	Prompt               string `json:"prompt"`
	ConversationHistoric string `json:"conversation_historic"`
}

func (s *Server) queryAI(c *fiber.Ctx) error {
	var req queryAIRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`prompt` field is required"})
	}

	history := dialogue.ParseHistory(req.ConversationHistoric)
	reply, updated, err := s.engine.Ask(c.Context(), history, req.Prompt)
	if err != nil {
		var infErr *dialogue.InferenceError
		if errors.As(err, &infErr) {
			log.Errorf("model query failed: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "model query failed"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.JSON(fiber.Map{
		"response":       reply,
		"updatedHistory": dialogue.FormatHistory(updated),
	})
}

type textToSpeechRequest struct {
	Text string `json:"text"`
}

func (s *Server) textToSpeech(c *fiber.Ctx) error {
	var req textToSpeechRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`text` field is required"})
	}

	out, err := s.synth.Synthesize(c.Context(), req.Text)
	if err != nil {
		log.Errorf("synthesis failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "text-to-speech failed"})
	}

	c.Set("Content-Type", "audio/wav")
	c.Set("Content-Disposition", `attachment; filename=speech.wav`)
	return c.Send(wrapWAV(out))
}

// wrapWAV puts a RIFF header around raw PCM so browsers can play the
// attachment directly.
func wrapWAV(a speech.Audio) []byte {
	channels := a.Channels
	if channels == 0 {
		channels = 1
	}
	byteRate := a.SampleRate * channels * 2
	buf := make([]byte, audio.WAVHeaderSize+len(a.PCM))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(a.PCM)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(a.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(a.PCM)))
	copy(buf[audio.WAVHeaderSize:], a.PCM)
	return buf
}
