package mcp

import (
	"context"
	"testing"
	"time"

	"backtestgpt/internal/catalog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestResourcesStaticAndTemplated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _, _, runs := testServer()
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	list, err := session.ListResources(ctx, &sdkmcp.ListResourcesParams{})
	if err != nil {
		t.Fatalf("list resources failed: %v", err)
	}
	if len(list.Resources) < 3 {
		t.Fatalf("expected at least 3 static resources, got %d", len(list.Resources))
	}

	templates, err := session.ListResourceTemplates(ctx, &sdkmcp.ListResourceTemplatesParams{})
	if err != nil {
		t.Fatalf("list templates failed: %v", err)
	}
	if len(templates.ResourceTemplates) < 2 {
		t.Fatalf("expected at least 2 resource templates, got %d", len(templates.ResourceTemplates))
	}

	readRes, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "catalog://indicators"})
	if err != nil {
		t.Fatalf("read indicators resource failed: %v", err)
	}
	var entries []catalog.Entry
	if err := decodeResourceJSON(readRes, &entries); err != nil {
		t.Fatalf("decode indicators failed: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected indicator entries payload")
	}

	readRes, err = session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "catalog://template/RSI_Reversal"})
	if err != nil {
		t.Fatalf("read template resource failed: %v", err)
	}
	var tpl catalog.Template
	if err := decodeResourceJSON(readRes, &tpl); err != nil {
		t.Fatalf("decode template failed: %v", err)
	}
	if tpl.Key != "RSI_Reversal" {
		t.Fatalf("expected RSI_Reversal template, got %q", tpl.Key)
	}

	readRes, err = session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "runs://latest?limit=5"})
	if err != nil {
		t.Fatalf("read runs resource failed: %v", err)
	}
	var out runsListOutput
	if err := decodeResourceJSON(readRes, &out); err != nil {
		t.Fatalf("decode runs failed: %v", err)
	}
	if len(out.Runs) != 1 || out.Runs[0].Ticker != "AAPL" {
		t.Fatalf("unexpected runs payload: %+v", out.Runs)
	}
	if runs.lastLimit != 5 {
		t.Fatalf("expected limit 5, got %d", runs.lastLimit)
	}
}

func TestUnknownTemplateResource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _, _, _ := testServer()
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	_, err = session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "catalog://template/NoSuchTemplate"})
	if err == nil {
		t.Fatal("expected resource not found error for unknown template")
	}
}
