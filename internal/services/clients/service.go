// Package clients keeps invoice counterparts (destinatarios) keyed by CPF/CNPJ.
package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/utils"
)

// Input is the full set of client fields. Every upsert overwrites all of them.
type Input struct {
	Document          string  `json:"documento" validate:"required,max=32"`
	Name              string  `json:"nome" validate:"max=500"`
	TradeName         *string `json:"nomeFantasia,omitempty"`
	Street            *string `json:"logradouro,omitempty"`
	Number            *string `json:"numero,omitempty" validate:"omitempty,max=32"`
	District          *string `json:"bairro,omitempty"`
	StateRegistration *string `json:"inscricaoEstadual,omitempty" validate:"omitempty,max=32"`
	City              *string `json:"cidade,omitempty"`
	State             *string `json:"uf,omitempty" validate:"omitempty,max=8"`
	ZipCode           *string `json:"cep,omitempty" validate:"omitempty,max=16"`
	Complement        *string `json:"enderecoComplemento,omitempty"`
	Country           *string `json:"enderecoPais,omitempty"`
	IBGECode          *string `json:"ibgeId,omitempty" validate:"omitempty,max=16"`
	Phone             *string `json:"telefone,omitempty" validate:"omitempty,max=32"`
	Email             *string `json:"email,omitempty" validate:"omitempty,max=128"`
}

// Fetcher looks up registry data for a CNPJ.
type Fetcher interface {
	Fetch(ctx context.Context, cnpj string) (*Input, error)
}

// Service manages clients.
type Service struct {
	lookup Fetcher
	log    *zap.Logger
}

// NewService creates a client service. lookup may be nil when CNPJ import is unused.
func NewService(lookup Fetcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{lookup: lookup, log: log.Named("clients")}
}

// Upsert inserts or overwrites the client identified by in.Document,
// holding the row lock for the rest of the transaction.
func (s *Service) Upsert(tx *gorm.DB, in Input) (*models.Client, error) {
	in.Document = strings.TrimSpace(in.Document)
	if in.Document == "" {
		return nil, catalog.NewValidationError("documento", "Documento do cliente nao informado")
	}
	if err := catalog.Validate(in); err != nil {
		return nil, err
	}

	c, err := lockClient(tx, in.Document)
	switch {
	case err == nil:
		return s.overwrite(tx, c, in)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("lock client %s: %w", in.Document, err)
	}

	c = &models.Client{}
	in.apply(c)
	// a concurrent first import of the same documento waits on the unique
	// index and then inserts nothing; the row is re-locked and overwritten
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "documento"}},
		DoNothing: true,
	}).Create(c)
	if res.Error != nil {
		return nil, fmt.Errorf("insert client %s: %w", in.Document, res.Error)
	}
	if res.RowsAffected == 1 {
		s.log.Debug("client created", zap.String("documento", c.Document), zap.Uint("id", c.ID))
		return c, nil
	}

	c, err = lockClient(tx, in.Document)
	if err != nil {
		return nil, fmt.Errorf("lock client %s after insert race: %w", in.Document, err)
	}
	return s.overwrite(tx, c, in)
}

func (s *Service) overwrite(tx *gorm.DB, c *models.Client, in Input) (*models.Client, error) {
	in.apply(c)
	if err := tx.Save(c).Error; err != nil {
		return nil, fmt.Errorf("save client %s: %w", in.Document, err)
	}
	s.log.Debug("client updated", zap.String("documento", c.Document), zap.Uint("id", c.ID))
	return c, nil
}

func lockClient(tx *gorm.DB, document string) (*models.Client, error) {
	var c models.Client
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("documento = ?", document).
		Take(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns clients ordered by name.
func (s *Service) List(tx *gorm.DB, limit int) ([]models.Client, error) {
	q := tx.Order("nome").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Client
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return out, nil
}

// ImportByCNPJ fetches registry data for cnpj and upserts the client.
func (s *Service) ImportByCNPJ(ctx context.Context, tx *gorm.DB, cnpj string) (*models.Client, error) {
	if s.lookup == nil {
		return nil, errors.New("CNPJ lookup is not configured")
	}
	cnpj = utils.CleanDocument(cnpj)
	if len(cnpj) != 14 {
		return nil, catalog.NewValidationError("cnpj", "CNPJ must have 14 digits")
	}

	in, err := s.lookup.Fetch(ctx, cnpj)
	if err != nil {
		return nil, err
	}
	c, err := s.Upsert(tx.WithContext(ctx), *in)
	if err != nil {
		return nil, err
	}
	s.log.Info("client imported from CNPJ registry", zap.String("cnpj", cnpj), zap.Uint("id", c.ID))
	return c, nil
}

func (in Input) apply(c *models.Client) {
	c.Document = in.Document
	c.Name = in.Name
	c.TradeName = in.TradeName
	c.Street = in.Street
	c.Number = in.Number
	c.District = in.District
	c.StateRegistration = in.StateRegistration
	c.City = in.City
	c.State = in.State
	c.ZipCode = in.ZipCode
	c.Complement = in.Complement
	c.Country = in.Country
	c.IBGECode = in.IBGECode
	c.Phone = in.Phone
	c.Email = in.Email
}
