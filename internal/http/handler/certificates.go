package handler

import (
	"github.com/gofiber/fiber/v2"

	"thesiscert/internal/service"
)

// GetCertificate resolves a thesis id, digest or transaction hash. A response with
// consistent=false is still 200: the mismatch list is the answer.
//
// @Summary  Verify a certificate
// @Tags     verification
// @Produce  json
// @Param    ref path string true "Thesis ID, digest or tx hash"
// @Success  200 {object} model.Certificate
// @Failure  404 {object} errorPayload
// @Router   /certificates/{ref} [get]
func GetCertificate(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cert, err := svc.GetCertificate(c.UserContext(), c.Params("ref"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(cert)
	}
}

// VerifyFile re-derives the digest of an uploaded file and verifies it.
//
// @Summary  Verify a file
// @Tags     verification
// @Accept   multipart/form-data
// @Produce  json
// @Param    file      formData file   true  "Document to verify"
// @Param    algorithm formData string false "Digest algorithm"
// @Success  200 {object} model.Certificate
// @Failure  404 {object} errorPayload
// @Router   /certificates/verify-file [post]
func VerifyFile(svc service.CertificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, _, _, err := readFormFile(c, "file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		cert, err := svc.VerifyFile(c.UserContext(), data, c.FormValue("algorithm"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(cert)
	}
}
