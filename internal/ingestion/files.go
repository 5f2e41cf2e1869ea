package ingestion

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

// readRows 读取批量文件，每行归一化为一个JSON载荷
// CSV 首行是表头；JSON 是对象数组。两种格式收敛到同一处理路径
func readRows(path string) ([][]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVRows(path)
	case ".json":
		return readJSONRows(path)
	default:
		return nil, fmt.Errorf("unsupported bulk file format: %s", path)
	}
}

// readCSVRows 按表头把每行转成 JSON 对象
// 列表字段（chronic_diseases、allergies）用分号分隔
func readCSVRows(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv file: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	rows := make([][]byte, 0, len(records)-1)

	for _, record := range records[1:] {
		row := make(map[string]interface{}, len(header))
		for i, col := range header {
			if i >= len(record) {
				break
			}
			value := strings.TrimSpace(record[i])
			if value == "" {
				continue
			}
			switch col {
			case "chronic_diseases", "allergies":
				row[col] = splitList(value)
			default:
				row[col] = value
			}
		}

		payload, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal csv row: %w", err)
		}
		rows = append(rows, payload)
	}

	return rows, nil
}

// readJSONRows 读取JSON对象数组
func readJSONRows(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read json file: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse json file: %w", err)
	}

	rows := make([][]byte, 0, len(items))
	for _, item := range items {
		rows = append(rows, []byte(item))
	}
	return rows, nil
}

// decodeAlertRow 把归一化载荷解码为告警事件
// CSV 路径的数值字段是字符串，经松散解码统一成 float64
func decodeAlertRow(payload []byte) (*models.AlertEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert row: %w", err)
	}

	event := &models.AlertEvent{
		AlertID:         stringField(raw, "alert_id"),
		DriverID:        stringField(raw, "driver_id"),
		Timestamp:       stringField(raw, "timestamp"),
		Message:         stringField(raw, "message"),
		DrowsinessLevel: floatField(raw, "drowsiness_level"),
		Confidence:      floatField(raw, "confidence"),
		Speed:           floatField(raw, "speed"),
	}

	// 位置既可能是结构化的 location 对象，也可能是 CSV 的两列经纬度
	if loc, ok := raw["location"].(map[string]interface{}); ok {
		event.Location = &models.Location{
			Latitude:  floatField(loc, "latitude"),
			Longitude: floatField(loc, "longitude"),
		}
		if desc := stringField(loc, "description"); desc != "" {
			event.Location.Description = desc
		}
	} else if _, ok := raw["latitude"]; ok {
		event.Location = &models.Location{
			Latitude:  floatField(raw, "latitude"),
			Longitude: floatField(raw, "longitude"),
		}
	}

	return event, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ";")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

func stringField(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func floatField(raw map[string]interface{}, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return 0
}
