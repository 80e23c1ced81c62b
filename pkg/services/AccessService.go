package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/rfberaldo/sqlz"
)

/*
AccessServicer is the only authorization clients have. Every lookup is
scoped by tenant and code together, and every miss looks the same whether
the code is unknown or belongs to another tenant.
*/
type AccessServicer interface {
	GenerateCode() (string, error)
	ResolveAlbumCode(ctx context.Context, tenantID uint, code string) (uint, error)
	ResolveSessionCode(ctx context.Context, tenantID uint, code string) (uint, error)
	VerifyAlbum(ctx context.Context, tenantID, albumID uint, code string) error
	VerifySession(ctx context.Context, tenantID, sessionID uint, code string) error
}

type AccessServiceConfig struct {
	DB *sqlz.DB
}

type AccessService struct {
	db *sqlz.DB
}

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 8
)

func NewAccessService(config AccessServiceConfig) AccessService {
	return AccessService{
		db: config.DB,
	}
}

/*
GenerateCode returns a new random access code. The alphabet has 32 symbols
so every byte maps without bias, giving 40 bits per code.
*/
func (s AccessService) GenerateCode() (string, error) {
	b := make([]byte, codeLength)

	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating access code: %w", err)
	}

	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}

	return string(b), nil
}

func (s AccessService) ResolveSessionCode(ctx context.Context, tenantID uint, code string) (uint, error) {
	sql := `
SELECT
   s.id
FROM sessions AS s
WHERE 1=1
   AND s.is_active=1
   AND s.tenant_id=?
   AND s.access_code=?
`

	return s.resolve(ctx, sql, tenantID, code)
}

/*
ResolveAlbumCode only resolves albums that have been sent. A draft album is
invisible to the client.
*/
func (s AccessService) ResolveAlbumCode(ctx context.Context, tenantID uint, code string) (uint, error) {
	sql := `
SELECT
   a.id
FROM albums AS a
WHERE 1=1
   AND a.is_active=1
   AND a.sent_at IS NOT NULL
   AND a.tenant_id=?
   AND a.access_code=?
`

	return s.resolve(ctx, sql, tenantID, code)
}

func (s AccessService) VerifySession(ctx context.Context, tenantID, sessionID uint, code string) error {
	id, err := s.ResolveSessionCode(ctx, tenantID, code)
	if err != nil {
		return err
	}

	if id != sessionID {
		return models.NotFound(models.ReasonCodeInvalid)
	}

	return nil
}

func (s AccessService) VerifyAlbum(ctx context.Context, tenantID, albumID uint, code string) error {
	id, err := s.ResolveAlbumCode(ctx, tenantID, code)
	if err != nil {
		return err
	}

	if id != albumID {
		return models.NotFound(models.ReasonCodeInvalid)
	}

	return nil
}

func (s AccessService) resolve(ctx context.Context, sql string, tenantID uint, code string) (uint, error) {
	code = NormalizeCode(code)

	if code == "" || tenantID == 0 {
		return 0, models.NotFound(models.ReasonCodeInvalid)
	}

	row := idRow{}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.QueryRow(ctx, &row, sql, tenantID, code); err != nil {
		return 0, storageError(err, models.ReasonCodeInvalid, "error resolving access code for tenant %d", tenantID)
	}

	return row.ID, nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
