// Package models contains domain types for civic-engine.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GovernmentBranch identifies the constitutional branch an organization belongs to.
type GovernmentBranch string

const (
	BranchExecutive   GovernmentBranch = "EXECUTIVE"
	BranchLegislative GovernmentBranch = "LEGISLATIVE"
	BranchJudicial    GovernmentBranch = "JUDICIAL"
)

// OrganizationType classifies a government organization.
type OrganizationType string

const (
	OrgTypeBranch            OrganizationType = "BRANCH"
	OrgTypeDepartment        OrganizationType = "DEPARTMENT"
	OrgTypeIndependentAgency OrganizationType = "INDEPENDENT_AGENCY"
	OrgTypeBureau            OrganizationType = "BUREAU"
	OrgTypeCommission        OrganizationType = "COMMISSION"
	OrgTypeBoard             OrganizationType = "BOARD"
	OrgTypeOffice            OrganizationType = "OFFICE"
)

// GovernmentOrganization is a canonical organization record reconciled from
// one or more import sources. ExternalID carries the source-tagged natural key
// (e.g. "GOVMAN:123"); ParentID is resolved during hierarchy resolution.
type GovernmentOrganization struct {
	ID               uuid.UUID        `json:"id"`
	OfficialName     string           `json:"official_name"`
	Acronym          string           `json:"acronym,omitempty"`
	Branch           GovernmentBranch `json:"branch"`
	OrgType          OrganizationType `json:"org_type"`
	ParentID         *uuid.UUID       `json:"parent_id,omitempty"`
	SortOrder        int              `json:"sort_order"`
	MissionStatement string           `json:"mission_statement,omitempty"`
	WebsiteURL       string           `json:"website_url,omitempty"`
	ExternalID       string           `json:"external_id,omitempty"`
	ImportSource     string           `json:"import_source,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// BranchFromCategory maps a GOVMAN Category value to a branch.
// Unknown and empty categories default to the executive branch.
func BranchFromCategory(category string) GovernmentBranch {
	normalized := strings.ToLower(strings.TrimSpace(category))
	switch {
	case strings.Contains(normalized, "legislative"):
		return BranchLegislative
	case strings.Contains(normalized, "judicial"):
		return BranchJudicial
	default:
		return BranchExecutive
	}
}

// OrgTypeFromEntityType maps a GOVMAN EntityType value to an organization type.
func OrgTypeFromEntityType(entityType string) OrganizationType {
	switch strings.ToLower(strings.TrimSpace(entityType)) {
	case "branch":
		return OrgTypeBranch
	case "department":
		return OrgTypeDepartment
	case "agency":
		return OrgTypeIndependentAgency
	case "bureau":
		return OrgTypeBureau
	case "commission":
		return OrgTypeCommission
	case "board":
		return OrgTypeBoard
	default:
		return OrgTypeOffice
	}
}
