package linkparse

import (
	"testing"

	"tenderbot/internal/types"
)

func TestExtractFallbackPatterns(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		wantReg      string
		wantPlatform string
	}{
		{
			name:         "zakupki query param",
			url:          "https://zakupki.gov.ru/epz/order/notice/ea44/view/common-info.html?regNumber=0123456789012345678",
			wantReg:      "0123456789012345678",
			wantPlatform: "zakupki.gov.ru",
		},
		{
			name:         "sberbank-ast path",
			url:          "https://www.sberbank-ast.ru/procedure/auction/procedure-view/123456789",
			wantReg:      "123456789",
			wantPlatform: "sberbank-ast.ru",
		},
		{
			name:         "b2b-center query param",
			url:          "https://www.b2b-center.ru/market/?action=show&tenderid=987654321",
			wantReg:      "987654321",
			wantPlatform: "b2b-center.ru",
		},
		{
			name:         "roseltorg path",
			url:          "https://www.roseltorg.ru/procedure/auction/view/procedure-cards/555444333",
			wantReg:      "555444333",
			wantPlatform: "roseltorg.ru",
		},
		{
			name:         "torgi.gov.ru lot path",
			url:          "https://torgi.gov.ru/new/public/lot/view/112233445",
			wantReg:      "112233445",
			wantPlatform: "torgi.gov.ru",
		},
		{
			name:         "zakazrf path",
			url:          "https://zakazrf.ru/tender/view/667788990",
			wantReg:      "667788990",
			wantPlatform: "zakazrf.ru",
		},
		{
			name:         "unknown platform",
			url:          "https://example.com/tender/1",
			wantReg:      "",
			wantPlatform: "",
		},
		{
			name:         "empty url",
			url:          "",
			wantReg:      "",
			wantPlatform: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, platform := Extract(tt.url, nil)
			if reg != tt.wantReg {
				t.Errorf("reg: got %q, want %q", reg, tt.wantReg)
			}
			if platform != tt.wantPlatform {
				t.Errorf("platform: got %q, want %q", platform, tt.wantPlatform)
			}
		})
	}
}

func TestExtractViaPlatformDirectory(t *testing.T) {
	platforms := []types.Platform{
		{ID: "1", Name: "ЕИС Закупки", URL: "zakupki.gov.ru"},
		{ID: "2", Name: "РТС-тендер", URL: "www.rts-tender.ru"},
	}

	reg, platform := Extract("https://www.rts-tender.ru/auction?procedureId=445566778", platforms)
	if reg != "445566778" {
		t.Errorf("reg: got %q", reg)
	}
	if platform != "РТС-тендер" {
		t.Errorf("platform: got %q", platform)
	}
}

func TestExtractDirectoryDigitRunFallback(t *testing.T) {
	platforms := []types.Platform{
		{ID: "2", Name: "РТС-тендер", URL: "rts-tender.ru"},
	}

	reg, platform := Extract("https://rts-tender.ru/lot/view-9988776655", platforms)
	if reg != "9988776655" {
		t.Errorf("reg: got %q", reg)
	}
	if platform != "РТС-тендер" {
		t.Errorf("platform: got %q", platform)
	}
}
