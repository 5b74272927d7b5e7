package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/salesiq/internal/intent"
	"github.com/kalambet/salesiq/internal/pipeline"
	"github.com/kalambet/salesiq/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Analyzer *pipeline.Analyzer
	Asks     AskLog // optional; without it sales://recent is not registered
}

// NewMCPServer creates an MCP server exposing the analyzer as tools.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"salesiq",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("salesiq answers free-text questions about sales data with a markdown narrative and embedded chart and table blocks."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_sales_question",
			mcp.WithDescription("Answer a question about sales, customers, products or regions. Returns markdown with ```chart and ```table JSON blocks."),
			mcp.WithString("question", mcp.Description("The question, e.g. \"top 5 products by profit\""), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("explain_question",
			mcp.WithDescription("Show how a question is classified and the query it would run, without running it."),
			mcp.WithString("question", mcp.Description("The question to explain"), mcp.Required()),
		),
		mcpExplain(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"sales://schema",
			"Sales Schema",
			mcp.WithResourceDescription("Tables, metrics, groupings and entity vocabularies the analyzer understands"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSchema(),
	)

	if deps.Asks != nil {
		s.AddResource(
			mcp.NewResource(
				"sales://recent",
				"Recent Questions",
				mcp.WithResourceDescription("Last 10 asked questions with their outcome"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceRecent(deps),
		)
	}

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || question == "" {
			return mcpError("question is required"), nil
		}

		ans, err := deps.Analyzer.Answer(ctx, pipeline.Query{Text: question})
		if err != nil {
			var f *pipeline.Failure
			if errors.As(err, &f) {
				return mcpError(f.Message), nil
			}
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return mcpText(ans.Response.Narrative), nil
	}
}

func mcpExplain(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || question == "" {
			return mcpError("question is required"), nil
		}

		ex, err := deps.Analyzer.Explain(question)
		if err != nil {
			var f *pipeline.Failure
			if errors.As(err, &f) {
				return mcpError(f.Message), nil
			}
			return mcpError(err.Error()), nil
		}

		b, err := json.Marshal(ex)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal explanation: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

type schemaDescription struct {
	DDL        string           `json:"ddl"`
	Metrics    []intent.Metric  `json:"metrics"`
	GroupBy    []intent.GroupBy `json:"group_by"`
	Categories []string         `json:"categories"`
	Regions    []string         `json:"regions"`
}

func mcpResourceSchema() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ddl, err := storage.SchemaDDL()
		if err != nil {
			return nil, err
		}

		b, err := json.Marshal(schemaDescription{
			DDL:     ddl,
			Metrics: []intent.Metric{intent.Revenue, intent.Profit, intent.Quantity, intent.Orders, intent.Satisfaction},
			GroupBy: []intent.GroupBy{
				intent.GroupByProduct, intent.GroupByCategory, intent.GroupByRegion, intent.GroupByCustomer,
				intent.GroupByMonth, intent.GroupByQuarter, intent.GroupByYear,
			},
			Categories: intent.Categories,
			Regions:    intent.Regions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		asks, err := deps.Asks.RecentAsks(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent asks: %w", err)
		}

		type askSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Question  string `json:"question"`
			Intent    string `json:"intent"`
			Outcome   string `json:"outcome"`
		}

		summaries := make([]askSummary, len(asks))
		for i, a := range asks {
			q := a.Question
			if utf8.RuneCountInString(q) > 200 {
				q = string([]rune(q)[:200]) + "..."
			}
			summaries[i] = askSummary{
				ID:        a.ID,
				CreatedAt: a.CreatedAt.Format(time.RFC3339),
				Question:  q,
				Intent:    a.Intent,
				Outcome:   a.Outcome,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal asks: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
