package sheet

import (
	"context"
	"fmt"
	"strconv"

	sheets "google.golang.org/api/sheets/v4"
)

// CellUpdate 描述一次单元格写入。
type CellUpdate struct {
	Row   int // 1-based
	Col   int // 1-based
	Value string
}

// Worksheet 是某个表格中的一个工作表，表头在首次访问时缓存。
type Worksheet struct {
	client        *Client
	spreadsheetID string
	tab           string
	header        []string
}

// Tab 返回工作表名。
func (w *Worksheet) Tab() string {
	return w.tab
}

// Header 返回表头（第一行），结果缓存。
func (w *Worksheet) Header(ctx context.Context) ([]string, error) {
	if w.header != nil {
		return w.header, nil
	}

	var resp *sheets.ValueRange
	err := w.client.caller.Do(ctx, "read_header", func() error {
		r, err := w.client.svc.Spreadsheets.Values.
			Get(w.spreadsheetID, w.rangeRef("1:1")).
			Context(ctx).Do()
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	header := []string{}
	if len(resp.Values) > 0 {
		for _, cell := range resp.Values[0] {
			header = append(header, cellString(cell))
		}
	}
	w.header = header
	return header, nil
}

// SetHeaderColumn 在缓存表头末尾登记新列（STATUS 列首次创建时使用）。
func (w *Worksheet) SetHeaderColumn(col int, name string) {
	for len(w.header) < col {
		w.header = append(w.header, "")
	}
	w.header[col-1] = name
}

// ReadRows 读取从 startRow 起最多 numRows 行，按表头组装为字典行。
// 短行会补齐到表头宽度；读到表尾之后返回空切片。
func (w *Worksheet) ReadRows(ctx context.Context, startRow, numRows int) ([]map[string]string, error) {
	header, err := w.Header(ctx)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("工作表 %q 的表头为空", w.tab)
	}

	endRow := startRow + numRows - 1
	rng := fmt.Sprintf("A%d:%s%d", startRow, ColumnLetter(len(header)), endRow)

	var resp *sheets.ValueRange
	err = w.client.caller.Do(ctx, "read_rows", func() error {
		r, err := w.client.svc.Spreadsheets.Values.
			Get(w.spreadsheetID, w.rangeRef(rng)).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(ctx).Do()
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(raw) {
				row[name] = cellString(raw[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadCell 读取单个单元格的显示值。
func (w *Worksheet) ReadCell(ctx context.Context, cell string) (string, error) {
	var resp *sheets.ValueRange
	err := w.client.caller.Do(ctx, "read_cell", func() error {
		r, err := w.client.svc.Spreadsheets.Values.
			Get(w.spreadsheetID, w.rangeRef(cell)).
			Context(ctx).Do()
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return cellString(resp.Values[0][0]), nil
}

// UpdateCell 写入单个单元格。
func (w *Worksheet) UpdateCell(ctx context.Context, row, col int, value string) error {
	rng := fmt.Sprintf("%s%d", ColumnLetter(col), row)
	return w.client.caller.Do(ctx, "update_cell", func() error {
		_, err := w.client.svc.Spreadsheets.Values.
			Update(w.spreadsheetID, w.rangeRef(rng), &sheets.ValueRange{
				Values: [][]interface{}{{value}},
			}).
			ValueInputOption("RAW").
			Context(ctx).Do()
		return err
	})
}

// BatchUpdate 在一次请求内写入多个单元格。
func (w *Worksheet) BatchUpdate(ctx context.Context, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		rng := fmt.Sprintf("%s%d", ColumnLetter(u.Col), u.Row)
		data = append(data, &sheets.ValueRange{
			Range:  w.rangeRef(rng),
			Values: [][]interface{}{{u.Value}},
		})
	}

	return w.client.caller.Do(ctx, "batch_update", func() error {
		_, err := w.client.svc.Spreadsheets.Values.
			BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateValuesRequest{
				ValueInputOption: "RAW",
				Data:             data,
			}).
			Context(ctx).Do()
		return err
	})
}

// BatchClear 清除给定范围的单元格内容，保留格式。
func (w *Worksheet) BatchClear(ctx context.Context, ranges []string) error {
	if len(ranges) == 0 {
		return nil
	}

	qualified := make([]string, 0, len(ranges))
	for _, r := range ranges {
		qualified = append(qualified, w.rangeRef(r))
	}

	return w.client.caller.Do(ctx, "batch_clear", func() error {
		_, err := w.client.svc.Spreadsheets.Values.
			BatchClear(w.spreadsheetID, &sheets.BatchClearValuesRequest{
				Ranges: qualified,
			}).
			Context(ctx).Do()
		return err
	})
}

// RowCount 返回工作表网格的总行数。
func (w *Worksheet) RowCount(ctx context.Context) (int, error) {
	var count int
	err := w.client.caller.Do(ctx, "row_count", func() error {
		resp, err := w.client.svc.Spreadsheets.
			Get(w.spreadsheetID).
			Fields("sheets.properties").
			Context(ctx).Do()
		if err != nil {
			return err
		}
		for _, s := range resp.Sheets {
			if s.Properties != nil && s.Properties.Title == w.tab {
				if s.Properties.GridProperties != nil {
					count = int(s.Properties.GridProperties.RowCount)
				}
				return nil
			}
		}
		return fmt.Errorf("表格中不存在工作表 %q", w.tab)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Overwrite 清空整个工作表后从 A1 起写入 values（镜像表刷新）。
func (w *Worksheet) Overwrite(ctx context.Context, values [][]string) error {
	if err := w.client.caller.Do(ctx, "clear_sheet", func() error {
		_, err := w.client.svc.Spreadsheets.Values.
			Clear(w.spreadsheetID, w.rangeRef(""), &sheets.ClearValuesRequest{}).
			Context(ctx).Do()
		return err
	}); err != nil {
		return err
	}

	if len(values) == 0 {
		return nil
	}

	data := make([][]interface{}, 0, len(values))
	for _, row := range values {
		cells := make([]interface{}, 0, len(row))
		for _, v := range row {
			cells = append(cells, v)
		}
		data = append(data, cells)
	}

	return w.client.caller.Do(ctx, "overwrite", func() error {
		_, err := w.client.svc.Spreadsheets.Values.
			Update(w.spreadsheetID, w.rangeRef("A1"), &sheets.ValueRange{
				Values: data,
			}).
			ValueInputOption("RAW").
			Context(ctx).Do()
		return err
	})
}

// rangeRef 为范围加上工作表限定；空范围表示整个工作表。
func (w *Worksheet) rangeRef(rng string) string {
	if rng == "" {
		return fmt.Sprintf("'%s'", w.tab)
	}
	return fmt.Sprintf("'%s'!%s", w.tab, rng)
}

// ColumnLetter 把 1-based 列号转换为 A1 记法的列字母。
func ColumnLetter(col int) string {
	letters := ""
	for col > 0 {
		col--
		letters = string(rune('A'+col%26)) + letters
		col /= 26
	}
	return letters
}

// cellString 把 API 返回的任意单元格值转成字符串。
// UNFORMATTED_VALUE 下数值以 float64 返回，整数值不保留小数点。
func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
