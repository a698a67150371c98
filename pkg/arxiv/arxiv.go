package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/code-100-precent/ResearchEcho/pkg/logger"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultBaseURL ArXiv 查询接口地址
const DefaultBaseURL = "https://export.arxiv.org/api/query"

// Paper 一条 ArXiv 检索结果
type Paper struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Authors    []string  `json:"authors"`
	Abstract   string    `json:"abstract"`
	URL        string    `json:"url"`
	Published  time.Time `json:"published"`
	Categories []string  `json:"categories"`
	// Score 基于返回顺序的相关性分数（1.0 最相关）
	Score float64 `json:"score"`
}

// Client ArXiv API 客户端
type Client struct {
	http    *resty.Client
	baseURL string
}

// Option 客户端配置选项
type Option func(*Client)

// WithBaseURL 覆盖接口地址（测试用）
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout 设置请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// NewClient 创建 ArXiv 客户端
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    resty.New().SetTimeout(20 * time.Second).SetHeader("User-Agent", "ResearchEcho/1.0"),
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search 按主题和关键词检索论文，按相关性降序返回
func (c *Client) Search(ctx context.Context, topic string, keyTerms []string, maxResults int) ([]Paper, error) {
	query := buildQuery(topic, keyTerms)
	if query == "" {
		return nil, fmt.Errorf("empty arxiv query")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"search_query": query,
			"start":        "0",
			"max_results":  fmt.Sprintf("%d", maxResults),
			"sortBy":       "relevance",
			"sortOrder":    "descending",
		}).
		Get(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("arxiv request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("arxiv returned HTTP %d", resp.StatusCode())
	}

	papers, err := parseFeed(resp.Body())
	if err != nil {
		return nil, err
	}

	logger.Debug("arxiv search completed",
		zap.String("query", query),
		zap.Int("results", len(papers)),
	)
	return papers, nil
}

// buildQuery 将主题和关键词组装为 search_query 参数
func buildQuery(topic string, keyTerms []string) string {
	var parts []string
	if topic = strings.TrimSpace(topic); topic != "" {
		parts = append(parts, "all:"+quoteTerm(topic))
	}
	for _, term := range keyTerms {
		if term = strings.TrimSpace(term); term != "" {
			parts = append(parts, "all:"+quoteTerm(term))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	// 主题必须命中，关键词任一命中即可
	return parts[0] + " AND (" + strings.Join(parts[1:], " OR ") + ")"
}

func quoteTerm(term string) string {
	if strings.ContainsAny(term, " \t") {
		return `"` + term + `"`
	}
	return term
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string `xml:"id"`
	Title      string `xml:"title"`
	Summary    string `xml:"summary"`
	Published  string `xml:"published"`
	Authors    []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

func parseFeed(body []byte) ([]Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parsing arxiv response: %w", err)
	}

	total := len(feed.Entries)
	papers := make([]Paper, 0, total)
	for i, entry := range feed.Entries {
		p := Paper{
			ID:       extractID(entry.ID),
			Title:    collapseWhitespace(entry.Title),
			Abstract: collapseWhitespace(entry.Summary),
			URL:      entry.ID,
		}
		if p.ID == "" {
			continue
		}
		for _, a := range entry.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
		}
		for _, cat := range entry.Categories {
			p.Categories = append(p.Categories, cat.Term)
		}
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			p.Published = t
		}
		// 顺序即相关性：首条 1.0，线性衰减到 0.1
		if total > 1 {
			p.Score = 1.0 - float64(i)/float64(total-1)*0.9
		} else {
			p.Score = 1.0
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// extractID 从 entry id（形如 http://arxiv.org/abs/2401.12345v1）提取论文编号
func extractID(entryID string) string {
	u, err := url.Parse(entryID)
	if err != nil {
		return ""
	}
	path := strings.TrimPrefix(u.Path, "/abs/")
	if path == u.Path {
		return ""
	}
	return path
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
