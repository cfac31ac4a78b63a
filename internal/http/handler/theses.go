package handler

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"thesiscert/internal/http/middleware"
	"thesiscert/internal/model"
	"thesiscert/internal/service"
)

type verificationRequest struct {
	InstitutionID string `json:"institution_id"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type onChainResponse struct {
	ThesisID  string `json:"thesis_id"`
	Certified bool   `json:"certified"`
}

// validID writes a 400 and returns false when the :id param is not a UUID.
func validID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		return "", false
	}
	return id, true
}

func requireActor(c *fiber.Ctx) (model.Actor, bool) {
	a, ok := middleware.Actor(c)
	if !ok {
		writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
	}
	return a, ok
}

// readFormFile returns the bytes and declared content type of a multipart file field.
func readFormFile(c *fiber.Ctx, field string) ([]byte, string, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", "", err
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return data, fh.Filename, ct, nil
}

// metadataFromForm reads thesis metadata from multipart fields. Authors are either a
// JSON array in "authors" or repeated "author" name fields; keywords are comma separated.
func metadataFromForm(c *fiber.Ctx) (model.ThesisMetadata, error) {
	m := model.ThesisMetadata{
		Title:           c.FormValue("title"),
		Summary:         c.FormValue("summary"),
		Language:        c.FormValue("language"),
		DegreeType:      c.FormValue("degree_type"),
		Department:      c.FormValue("department"),
		Field:           c.FormValue("field"),
		DOI:             c.FormValue("doi"),
		InstitutionID:   c.FormValue("institution_id"),
		DigestAlgorithm: c.FormValue("digest_algorithm"),
	}
	for _, k := range strings.Split(c.FormValue("keywords"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			m.Keywords = append(m.Keywords, k)
		}
	}

	if raw := c.FormValue("authors"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Authors); err != nil {
			return m, err
		}
		return m, nil
	}
	if form, err := c.MultipartForm(); err == nil {
		for _, name := range form.Value["author"] {
			m.Authors = append(m.Authors, model.Author{Name: name})
		}
	}
	return m, nil
}

// SubmitThesis handles multipart uploads (field "file" plus metadata fields).
//
// @Summary  Submit a thesis
// @Tags     theses
// @Accept   multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param    file           formData file   true  "Thesis document"
// @Param    title          formData string true  "Title"
// @Param    institution_id formData string true  "Institution ID"
// @Param    authors        formData string true  "JSON array of {name,email}"
// @Success  201 {object} model.Thesis
// @Failure  400 {object} errorPayload
// @Failure  403 {object} errorPayload
// @Failure  409 {object} errorPayload
// @Router   /theses [post]
func SubmitThesis(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}

		data, filename, ct, err := readFormFile(c, "file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		meta, err := metadataFromForm(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_AUTHORS", "authors must be a JSON array")
		}

		th, err := svc.SubmitThesis(c.UserContext(), actor, meta, data, filename, ct)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(th)
	}
}

// ListTheses lists theses with optional status and institution filters.
//
// @Summary  List theses
// @Tags     theses
// @Produce  json
// @Security BearerAuth
// @Param    status         query string false "Lifecycle status"
// @Param    institution_id query string false "Institution ID"
// @Param    limit          query int    false "Page size" default(10)
// @Param    offset         query int    false "Offset"    default(0)
// @Success  200 {object} service.ThesisListResult
// @Router   /theses [get]
func ListTheses(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), service.ListFilter{
			Status:        c.Query("status"),
			InstitutionID: c.Query("institution_id"),
			UploadedBy:    c.Query("uploaded_by"),
			Limit:         limit,
			Offset:        offset,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetThesis returns one thesis.
//
// @Summary  Get a thesis
// @Tags     theses
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Thesis ID"
// @Success  200 {object} model.Thesis
// @Failure  404 {object} errorPayload
// @Router   /theses/{id} [get]
func GetThesis(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c)
		if !ok {
			return nil
		}
		th, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(th)
	}
}

// ThesisEvents returns the audit trail of a thesis.
func ThesisEvents(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c)
		if !ok {
			return nil
		}
		events, err := svc.Events(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": events})
	}
}

// DeleteThesis soft-deletes a thesis.
//
// @Summary  Delete a thesis
// @Tags     theses
// @Security BearerAuth
// @Param    id path string true "Thesis ID"
// @Success  204
// @Failure  409 {object} errorPayload
// @Router   /theses/{id} [delete]
func DeleteThesis(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}
		id, ok := validID(c)
		if !ok {
			return nil
		}
		if err := svc.Delete(c.UserContext(), actor, id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RequestVerification records institutional sign-off.
//
// @Summary  Institution verification
// @Tags     lifecycle
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string              true  "Thesis ID"
// @Param    body body verificationRequest false "Institution"
// @Success  200 {object} model.Thesis
// @Router   /theses/{id}/verification [post]
func RequestVerification(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}
		id, ok := validID(c)
		if !ok {
			return nil
		}
		var body verificationRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
			}
		}
		th, err := svc.RequestInstitutionVerification(c.UserContext(), actor, id, body.InstitutionID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(th)
	}
}

// CertifyThesis anchors the thesis on the ledger. It blocks until the anchor
// transaction is confirmed or the confirmation wait times out.
//
// @Summary  Certify a thesis
// @Tags     lifecycle
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Thesis ID"
// @Success  200 {object} model.Thesis
// @Failure  403 {object} errorPayload
// @Failure  409 {object} errorPayload
// @Failure  503 {object} errorPayload
// @Router   /theses/{id}/certify [post]
func CertifyThesis(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}
		id, ok := validID(c)
		if !ok {
			return nil
		}
		th, err := svc.Certify(c.UserContext(), actor, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(th)
	}
}

func reasonTransition(fn func(c *fiber.Ctx, actor model.Actor, id, reason string) (*model.Thesis, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := requireActor(c)
		if !ok {
			return nil
		}
		id, ok := validID(c)
		if !ok {
			return nil
		}
		var body reasonRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
			}
		}
		th, err := fn(c, actor, id, strings.TrimSpace(body.Reason))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(th)
	}
}

// RejectThesis moves a thesis to rejected.
//
// @Summary  Reject a thesis
// @Tags     lifecycle
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string        true  "Thesis ID"
// @Param    body body reasonRequest false "Reason"
// @Success  200 {object} model.Thesis
// @Router   /theses/{id}/reject [post]
func RejectThesis(svc service.CertificationService) fiber.Handler {
	return reasonTransition(func(c *fiber.Ctx, actor model.Actor, id, reason string) (*model.Thesis, error) {
		return svc.Reject(c.UserContext(), actor, id, reason)
	})
}

// RevokeThesis annotates a certified thesis as revoked.
//
// @Summary  Revoke a certification
// @Tags     lifecycle
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string        true  "Thesis ID"
// @Param    body body reasonRequest false "Reason"
// @Success  200 {object} model.Thesis
// @Router   /theses/{id}/revoke [post]
func RevokeThesis(svc service.CertificationService) fiber.Handler {
	return reasonTransition(func(c *fiber.Ctx, actor model.Actor, id, reason string) (*model.Thesis, error) {
		return svc.Revoke(c.UserContext(), actor, id, reason)
	})
}

// OnChainStatus reads the ledger directly.
//
// @Summary  Ledger status
// @Tags     verification
// @Produce  json
// @Param    id path string true "Thesis ID"
// @Success  200 {object} onChainResponse
// @Router   /theses/{id}/onchain [get]
func OnChainStatus(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c)
		if !ok {
			return nil
		}
		certified, err := svc.IsCertifiedOnChain(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(onChainResponse{ThesisID: id, Certified: certified})
	}
}
