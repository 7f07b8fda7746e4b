package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- Client DTOs ---

type CreateClientRequest struct {
	Name           string `json:"name" binding:"required"`
	CompanyName    string `json:"company_name"`
	ContactPerson  string `json:"contact_person"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	BillingAddress string `json:"billing_address"`
}

type UpdateClientRequest struct {
	Name           *string `json:"name"`
	CompanyName    *string `json:"company_name"`
	ContactPerson  *string `json:"contact_person"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email"`
	BillingAddress *string `json:"billing_address"`
	IsActive       *bool   `json:"is_active"`
}

type ClientResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	CompanyName    string    `json:"company_name"`
	ContactPerson  string    `json:"contact_person"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	BillingAddress string    `json:"billing_address"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// --- Interface ---

type ClientService interface {
	CreateClient(ctx context.Context, actor Actor, req CreateClientRequest) (ClientResponse, error)
	UpdateClient(ctx context.Context, actor Actor, id string, req UpdateClientRequest) (ClientResponse, error)
	DeleteClient(ctx context.Context, actor Actor, id string) error
	GetClientByID(ctx context.Context, id string) (ClientResponse, error)
	ListClients(ctx context.Context, search string, activeOnly bool, page, limit int) ([]ClientResponse, int64, error)
}

// --- Implementation ---

type clientService struct {
	clientRepo repository.ClientRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
}

func NewClientService(clientRepo repository.ClientRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) ClientService {
	return &clientService{clientRepo: clientRepo, auditRepo: auditRepo, txManager: txManager}
}

func (s *clientService) CreateClient(ctx context.Context, actor Actor, req CreateClientRequest) (ClientResponse, error) {
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return ClientResponse{}, fmt.Errorf("%w: invalid email format", ErrValidation)
		}
	}

	client := &model.Client{
		Name:           req.Name,
		CompanyName:    req.CompanyName,
		ContactPerson:  req.ContactPerson,
		Phone:          req.Phone,
		Email:          req.Email,
		BillingAddress: req.BillingAddress,
		IsActive:       true,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.clientRepo.Create(txCtx, client); createErr != nil {
			return fmt.Errorf("failed to create client: %w", createErr)
		}
		return s.audit(txCtx, actor, model.ActionCreateClient, client.ID, client.Name)
	})
	if err != nil {
		return ClientResponse{}, err
	}

	return toClientResponse(*client), nil
}

func (s *clientService) UpdateClient(ctx context.Context, actor Actor, id string, req UpdateClientRequest) (ClientResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ClientResponse{}, fmt.Errorf("%w: invalid client id", ErrValidation)
	}

	client, err := s.clientRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ClientResponse{}, fmt.Errorf("%w: client", ErrNotFound)
		}
		return ClientResponse{}, fmt.Errorf("failed to fetch client: %w", err)
	}

	if req.Name != nil {
		if *req.Name == "" {
			return ClientResponse{}, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		client.Name = *req.Name
	}
	if req.Email != nil && *req.Email != "" {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			return ClientResponse{}, fmt.Errorf("%w: invalid email format", ErrValidation)
		}
		client.Email = *req.Email
	} else if req.Email != nil {
		client.Email = ""
	}
	if req.CompanyName != nil {
		client.CompanyName = *req.CompanyName
	}
	if req.ContactPerson != nil {
		client.ContactPerson = *req.ContactPerson
	}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.BillingAddress != nil {
		client.BillingAddress = *req.BillingAddress
	}
	if req.IsActive != nil {
		client.IsActive = *req.IsActive
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.clientRepo.Update(txCtx, client); updateErr != nil {
			return fmt.Errorf("failed to update client: %w", updateErr)
		}
		return s.audit(txCtx, actor, model.ActionUpdateClient, client.ID, client.Name)
	})
	if err != nil {
		return ClientResponse{}, err
	}

	return toClientResponse(*client), nil
}

func (s *clientService) DeleteClient(ctx context.Context, actor Actor, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid client id", ErrValidation)
	}

	if _, err := s.clientRepo.FindByID(ctx, uid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: client", ErrNotFound)
		}
		return fmt.Errorf("failed to fetch client: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if deleteErr := s.clientRepo.Delete(txCtx, uid); deleteErr != nil {
			return fmt.Errorf("failed to delete client: %w", deleteErr)
		}
		return s.audit(txCtx, actor, model.ActionDeleteClient, uid, "")
	})
}

func (s *clientService) GetClientByID(ctx context.Context, id string) (ClientResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ClientResponse{}, fmt.Errorf("%w: invalid client id", ErrValidation)
	}

	client, err := s.clientRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ClientResponse{}, fmt.Errorf("%w: client", ErrNotFound)
		}
		return ClientResponse{}, fmt.Errorf("failed to fetch client: %w", err)
	}
	return toClientResponse(*client), nil
}

func (s *clientService) ListClients(ctx context.Context, search string, activeOnly bool, page, limit int) ([]ClientResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	clients, total, err := s.clientRepo.List(ctx, search, activeOnly, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch clients: %w", err)
	}

	res := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		res = append(res, toClientResponse(c))
	}

	return res, total, nil
}

func (s *clientService) audit(ctx context.Context, actor Actor, action string, entityID uuid.UUID, entityName string) error {
	var userID *uuid.UUID
	if actor.ID != uuid.Nil {
		actorID := actor.ID
		userID = &actorID
	}

	entry := &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID.String(),
		EntityName: entityName,
		Details:    "{}",
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// --- Response mappers ---

func toClientResponse(c model.Client) ClientResponse {
	return ClientResponse{
		ID:             c.ID,
		Name:           c.Name,
		CompanyName:    c.CompanyName,
		ContactPerson:  c.ContactPerson,
		Phone:          c.Phone,
		Email:          c.Email,
		BillingAddress: c.BillingAddress,
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
