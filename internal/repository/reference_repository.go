package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thnhpht/ITS/internal/domain"
)

// TaxonomyRepository resolves classification ids to names.
type TaxonomyRepository interface {
	LabelByID(ctx context.Context, level int, id string) (string, error)
}

// OrgRepository answers org-structure and company-hierarchy lookups.
type OrgRepository interface {
	UnitType(ctx context.Context, lookupKey string) (string, error)
	Jobcode(ctx context.Context, unitType, key string) (*domain.JobcodeRecord, error)
	// Emails returns the distinct addresses tied to any of codes. An empty
	// company matches every unit.
	Emails(ctx context.Context, codes domain.JobcodeList, company string) ([]string, error)
	ParentCompany(ctx context.Context, company string) (string, error)
}

// RuleRepository reads routing and SLA tables.
type RuleRepository interface {
	ListRoutingRules(ctx context.Context, l1 string) ([]domain.RoutingRule, error)
	ListSLAPolicies(ctx context.Context, l1 string, level domain.ProcessingLevel, priority string) ([]domain.SLAPolicy, error)
}

// TemplateRepository reads stored message templates.
type TemplateRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.EmailTemplate, error)
}

// ReferenceRepository implements the read-only lookups above on one pool,
// normally the replica.
type ReferenceRepository struct {
	pool *pgxpool.Pool
}

// NewReferenceRepository instantiates repository.
func NewReferenceRepository(pool *pgxpool.Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

func (r *ReferenceRepository) LabelByID(ctx context.Context, level int, id string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM taxonomy_labels WHERE level=$1 AND id=$2`, level, id).Scan(&name)
	return name, err
}

// UnitType matches the key against company code patterns.
func (r *ReferenceRepository) UnitType(ctx context.Context, lookupKey string) (string, error) {
	var unitType string
	const query = `SELECT unit_type FROM org_companies WHERE $1 LIKE company_code ORDER BY length(company_code) DESC LIMIT 1`
	err := r.pool.QueryRow(ctx, query, lookupKey).Scan(&unitType)
	return unitType, err
}

func (r *ReferenceRepository) Jobcode(ctx context.Context, unitType, key string) (*domain.JobcodeRecord, error) {
	var codes, parents string
	const query = `SELECT jobcodes, parent_jobcodes FROM org_jobcodes WHERE unit_type=$1 AND unit_key=$2 LIMIT 1`
	if err := r.pool.QueryRow(ctx, query, unitType, key).Scan(&codes, &parents); err != nil {
		return nil, err
	}
	return &domain.JobcodeRecord{
		UnitType:    unitType,
		Key:         key,
		Codes:       domain.ParseJobcodeList(codes),
		ParentCodes: domain.ParseJobcodeList(parents),
	}, nil
}

func (r *ReferenceRepository) Emails(ctx context.Context, codes domain.JobcodeList, company string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	const query = `
        SELECT DISTINCT email FROM org_emails
        WHERE jobcode = ANY($1) AND ($2 = '' OR company_code = $2)
        ORDER BY email`
	rows, err := r.pool.Query(ctx, query, []string(codes), company)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		result = append(result, email)
	}
	return result, rows.Err()
}

func (r *ReferenceRepository) ParentCompany(ctx context.Context, company string) (string, error) {
	var parent string
	err := r.pool.QueryRow(ctx, `SELECT parent_code FROM org_companies WHERE company_code=$1`, company).Scan(&parent)
	if err == nil && parent == "" {
		return "", pgx.ErrNoRows
	}
	return parent, err
}

func (r *ReferenceRepository) ListRoutingRules(ctx context.Context, l1 string) ([]domain.RoutingRule, error) {
	const query = `
        SELECT id, l1, l2, l3, status, mode, channel, api, email
        FROM routing_rules WHERE l1=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, l1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RoutingRule
	for rows.Next() {
		var rule domain.RoutingRule
		if err := rows.Scan(
			&rule.ID,
			&rule.L1,
			&rule.L2,
			&rule.L3,
			&rule.Status,
			&rule.Mode,
			&rule.Channel,
			&rule.API,
			&rule.Email,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *ReferenceRepository) ListSLAPolicies(ctx context.Context, l1 string, level domain.ProcessingLevel, priority string) ([]domain.SLAPolicy, error) {
	const query = `
        SELECT id, l1, l2, l3, processing_level, priority,
               handling_minutes, closing_minutes, forwarding_minutes, total_days
        FROM sla_policies
        WHERE l1=$1 AND processing_level=$2 AND (priority='' OR priority=$3)
        ORDER BY (priority = '') ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, l1, level, priority)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAPolicy
	for rows.Next() {
		var p domain.SLAPolicy
		if err := rows.Scan(
			&p.ID,
			&p.L1,
			&p.L2,
			&p.L3,
			&p.ProcessingLevel,
			&p.Priority,
			&p.HandlingMinutes,
			&p.ClosingMinutes,
			&p.ForwardingMinutes,
			&p.TotalDays,
		); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *ReferenceRepository) GetByCode(ctx context.Context, code string) (*domain.EmailTemplate, error) {
	var tpl domain.EmailTemplate
	err := r.pool.QueryRow(ctx, `SELECT code, subject, content FROM email_templates WHERE code=$1`, code).
		Scan(&tpl.Code, &tpl.Subject, &tpl.Content)
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
