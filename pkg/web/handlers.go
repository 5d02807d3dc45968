package web

import (
	"fmt"
	"html"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-webcam/pkg/encoder"
	"github.com/teslashibe/go-webcam/pkg/protocol"
)

const errNoFrame = "no frame captured yet"

const indexPage = `<html><body><img src="%s"></body></html>`

// handleIndex serves a page embedding src.
func (s *Server) handleIndex(src string) fiber.Handler {
	page := fmt.Sprintf(indexPage, html.EscapeString(src))
	return func(c *fiber.Ctx) error {
		c.Type("html")
		return c.SendString(page)
	}
}

// handleImage returns the cached JPEG.
func (s *Server) handleImage(c *fiber.Ctx) error {
	img, ok := s.producer.Latest()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": errNoFrame,
		})
	}
	return sendImage(c, img)
}

// handleCapturePage captures a frame and returns a page showing it.
func (s *Server) handleCapturePage(c *fiber.Ctx) error {
	img, err := s.trigger.Trigger(c.UserContext())
	if err != nil {
		return captureFailed(c, err)
	}
	page := fmt.Sprintf(indexPage, "/image?id="+img.ID.String())
	c.Type("html")
	return c.SendString(page)
}

// handleCaptureImage captures a frame and returns the JPEG.
func (s *Server) handleCaptureImage(c *fiber.Ctx) error {
	img, err := s.trigger.Trigger(c.UserContext())
	if err != nil {
		return captureFailed(c, err)
	}
	return sendImage(c, img)
}

func captureFailed(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func sendImage(c *fiber.Ctx, img *encoder.Image) error {
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderLastModified, img.CapturedAt.UTC().Format(time.RFC1123))
	c.Set("X-Frame-Id", img.ID.String())
	return c.Send(img.Bytes())
}

// handleStatus returns producer health and websocket client counts.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"producer": s.producer.Status(),
		"clients": fiber.Map{
			"camera": s.cameraHub.ClientCount(),
			"events": s.eventHub.ClientCount(),
		},
		"dropped": fiber.Map{
			"camera": s.cameraHub.Dropped(),
			"events": s.eventHub.Dropped(),
		},
		"cache": fiber.Map{
			"seq":   s.producer.Cache().Seq(),
			"stale": s.producer.Cache().Stale(),
		},
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

// handleConfig returns the camera configuration.
func (s *Server) handleConfig(c *fiber.Ctx) error {
	if s.cameraInfo == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.cameraInfo)
}

// handleMotion runs the motion probe on the latest frame.
func (s *Server) handleMotion(c *fiber.Ctx) error {
	if s.probe == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "motion probe not configured",
		})
	}

	img, ok := s.producer.Latest()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": errNoFrame,
		})
	}

	present, err := s.probe.Detect(img.Bytes())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if msg, err := protocol.NewMotionMessage(img, present); err == nil {
		s.publish(msg)
	}

	return c.JSON(protocol.MotionData{
		FrameID: img.ID.String(),
		Present: present,
		Width:   img.Width,
		Height:  img.Height,
	})
}
