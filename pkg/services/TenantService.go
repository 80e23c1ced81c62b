package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/rfberaldo/sqlz"
	"golang.org/x/crypto/bcrypt"
)

type TenantServicer interface {
	Authenticate(ctx context.Context, slug, password string) (*models.Tenant, error)
	Create(ctx context.Context, slug, name, email, password string) (*models.Tenant, error)
	GetAll(ctx context.Context) ([]models.Tenant, error)
	GetByID(ctx context.Context, id uint) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

type TenantServiceConfig struct {
	DB *sqlz.DB
}

type TenantService struct {
	db *sqlz.DB
}

const tenantColumns = `
   t.id
   , t.created_at
   , t.updated_at
   , t.slug
   , t.name
   , t.email
   , t.password_hash
`

func NewTenantService(config TenantServiceConfig) TenantService {
	return TenantService{
		db: config.DB,
	}
}

/*
Authenticate checks a provider's password. Unknown slugs and bad passwords
return the same NotFound error.
*/
func (s TenantService) Authenticate(ctx context.Context, slug, password string) (*models.Tenant, error) {
	var (
		err    error
		tenant *models.Tenant
	)

	if tenant, err = s.GetBySlug(ctx, slug); err != nil {
		return nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(tenant.PasswordHash), []byte(password)); err != nil {
		return nil, models.NotFound("invalid credentials")
	}

	return tenant, nil
}

func (s TenantService) Create(ctx context.Context, slug, name, email, password string) (*models.Tenant, error) {
	var (
		err  error
		hash []byte
	)

	slug = normalizeSlug(slug)

	if slug == "" || strings.TrimSpace(name) == "" || password == "" {
		return nil, models.Validation("slug, name and password are required")
	}

	if hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost); err != nil {
		return nil, fmt.Errorf("error hashing password for tenant %s: %w", slug, err)
	}

	sql := `
INSERT INTO tenants (
   slug
   , name
   , email
   , password_hash
) VALUES (?, ?, ?, ?)
`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, slug, strings.TrimSpace(name), strings.TrimSpace(email), string(hash))

	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, models.Validation("slug already taken")
		}

		return nil, models.Transient(err, "error inserting tenant %s", slug)
	}

	id, _ := result.LastInsertId()
	return s.GetByID(ctx, uint(id))
}

func (s TenantService) GetAll(ctx context.Context) ([]models.Tenant, error) {
	var (
		err     error
		tenants []models.Tenant
	)

	sql := `SELECT ` + tenantColumns + ` FROM tenants AS t ORDER BY t.name`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err = queryAll(ctx, s.db, &tenants, sql); err != nil {
		return nil, models.Transient(err, "error querying for all tenants")
	}

	return tenants, nil
}

func (s TenantService) GetByID(ctx context.Context, id uint) (*models.Tenant, error) {
	result := &models.Tenant{}

	sql := `SELECT ` + tenantColumns + ` FROM tenants AS t WHERE t.id=?`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.QueryRow(ctx, result, sql, id); err != nil {
		return nil, storageError(err, "tenant not found", "error querying for tenant %d", id)
	}

	return result, nil
}

/*
GetBySlug is the tenant lookup the client surface uses to turn the tenant
part of a URL into a tenant id.
*/
func (s TenantService) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	result := &models.Tenant{}
	slug = normalizeSlug(slug)

	if slug == "" {
		return nil, models.NotFound("tenant not found")
	}

	sql := `SELECT ` + tenantColumns + ` FROM tenants AS t WHERE t.slug=?`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.QueryRow(ctx, result, sql, slug); err != nil {
		return nil, storageError(err, "tenant not found", "error querying for tenant by slug %s", slug)
	}

	return result, nil
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
