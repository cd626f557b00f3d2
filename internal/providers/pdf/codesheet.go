package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) GenerateCodeSheet(ctx context.Context, sheet CodeSheet) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	title := sheet.Title
	if title == "" {
		title = "Authorization codes"
	}
	m.AddRow(12,
		text.NewCol(12, title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, fmt.Sprintf("Generated %s, %d codes", sheet.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), len(sheet.Codes)), props.Text{
			Size: 9,
		}),
	)

	m.AddRow(10,
		text.NewCol(4, "Code", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(3, "Type", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(2, "Minutes", props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
		text.NewCol(3, "Expires", props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	for _, entry := range sheet.Codes {
		expires := "never"
		if entry.ExpiresAt != nil {
			expires = entry.ExpiresAt.UTC().Format("2006-01-02")
		}
		m.AddRow(9,
			text.NewCol(4, entry.Code, props.Text{Size: 11, Family: fontfamily.Courier}),
			text.NewCol(3, entry.CodeType+" ("+entry.Tier+")", props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", entry.Minutes), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, expires, props.Text{Size: 9, Align: align.Right}),
		)
	}

	if len(sheet.Codes) == 0 {
		m.AddRow(10, col.New(12).Add(
			text.New("No codes to export.", props.Text{Size: 9, Top: 2}),
		))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
