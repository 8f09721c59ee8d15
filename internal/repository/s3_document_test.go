package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentURL(t *testing.T) {
	assert.Equal(t, "http://files.local:8333/invoices/2024/INV-2024-00001.pdf",
		documentURL("http://files.local:8333", "invoices", "2024/INV-2024-00001.pdf"))
	assert.Equal(t, "https://cdn.test/docs/a.pdf", documentURL("https://cdn.test", "docs", "/a.pdf"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
