package model

import (
	"strings"
	"time"
)

type ReviewStatus string // 리뷰 상태

const (
	ReviewStatusActive   ReviewStatus = "active"   // 노출 중
	ReviewStatusInactive ReviewStatus = "inactive" // 삭제됨 (소프트 삭제)
	ReviewStatusPending  ReviewStatus = "pending"  // 검토 대기
)

// Valid reports whether s is one of the known statuses.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewStatusActive, ReviewStatusInactive, ReviewStatusPending:
		return true
	}
	return false
}

// AnonymousAuthor is shown when a review has no author. It is never stored.
const AnonymousAuthor = "anonymous"

// OrderDetail 고객의 최초 차량 주문 조건
type OrderDetail struct {
	VehicleType    string `gorm:"index" json:"vehicle_type"` // 차종
	Budget         string `json:"budget"`                    // 예산
	Mileage        string `json:"mileage"`                   // 주행거리
	PreferredColor string `json:"preferred_color"`           // 선호 색상
	RepairHistory  string `json:"repair_history"`            // 사고/수리 이력
	ReferenceSite  string `json:"reference_site"`            // 참고 사이트
}

// IsZero reports whether no order detail field is set.
func (d OrderDetail) IsZero() bool {
	return d == OrderDetail{}
}

// Review 고객 후기
type Review struct {
	ID           string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title        string       `gorm:"not null" json:"title"`
	Content      string       `gorm:"type:text;not null" json:"content"`
	Author       string       `json:"author"`
	Rating       int          `gorm:"default:0" json:"rating"`                                           // 평점 (0 = 미입력)
	ReviewDate   string       `json:"review_date"`                                                     // 구매일 (표시용 문자열)
	Status       ReviewStatus `gorm:"type:varchar(20);not null;default:'active';index:idx_reviews_status_created,priority:1" json:"status"`
	Views        int64        `gorm:"not null;default:0" json:"views"`
	ImageURL     string       `json:"image_url"`
	OrderDetail  OrderDetail  `gorm:"embedded;embeddedPrefix:order_" json:"order_detail"`
	LastViewedAt *time.Time   `json:"last_viewed_at,omitempty"`
	CreatedAt    time.Time    `gorm:"index:idx_reviews_status_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Review) TableName() string {
	return "reviews"
}

// DisplayAuthor applies the render-time default for a missing author.
func (r *Review) DisplayAuthor() string {
	if strings.TrimSpace(r.Author) == "" {
		return AnonymousAuthor
	}
	return r.Author
}

// Paragraphs splits content on line breaks, dropping blank lines.
func (r *Review) Paragraphs() []string {
	lines := strings.Split(strings.ReplaceAll(r.Content, "\r\n", "\n"), "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return paragraphs
}

// ReviewViewStats 활성 리뷰 조회수 통계
type ReviewViewStats struct {
	TotalViews  int64 `json:"total_views"`
	ReviewCount int64 `json:"review_count"`
	AvgViews    int64 `json:"avg_views"`
	MaxViews    int64 `json:"max_views"`
	MinViews    int64 `json:"min_views"`
}
