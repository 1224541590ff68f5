package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"simbroker/biz/sim"
	"simbroker/config"
)

// 回放工具：从 JSONL 事件流重放账户引擎，输出每一步的差分和最终快照。
// 同一份输入重放任意多次，输出字节级一致。
//
// 事件格式（每行一个 JSON 对象）：
//   {"aid":"quote","quote":{...}}
//   {"aid":"insert_order","insert_order":{...}}
//   {"aid":"cancel_order","instrument_id":"...","order_id":"..."}
//   {"aid":"settle"}

type replayEvent struct {
	Aid          string              `json:"aid"`
	Quote        *sim.Quote          `json:"quote,omitempty"`
	InsertOrder  *sim.InsertOrderReq `json:"insert_order,omitempty"`
	InstrumentID string              `json:"instrument_id,omitempty"`
	OrderID      string              `json:"order_id,omitempty"`
}

type replayOutput struct {
	Line    int              `json:"line"`
	Aid     string           `json:"aid"`
	Patches []sim.Patch      `json:"patches,omitempty"`
	Events  []sim.OrderEvent `json:"events,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func main() {
	cfg := config.Load()

	var (
		accountKey  = flag.String("account", cfg.AccountKey, "账户键，格式 user|currency")
		quotesFile  = flag.String("in", cfg.QuotesFile, "事件流文件（JSONL），- 表示stdin")
		outFile     = flag.String("out", cfg.OutFile, "差分输出文件，留空输出到stdout")
		initBalance = flag.Float64("balance", 10000000, "初始资金")
	)
	flag.Parse()

	currency := "CNY"
	if parts := strings.SplitN(*accountKey, "|", 2); len(parts) == 2 {
		currency = parts[1]
	}

	in, err := openInput(*quotesFile)
	if err != nil {
		log.Fatalf("打开事件流失败: %v", err)
	}
	defer in.Close()

	out := io.Writer(os.Stdout)
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			log.Fatalf("创建输出文件失败: %v", err)
		}
		defer f.Close()
		out = f
	}

	eng := sim.NewEngine(*accountKey, currency, *initBalance, sim.DefaultFeePolicy())
	mirror := eng.InitSnapshot()

	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNo++
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var ev replayEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			log.Fatalf("第%d行解析失败: %v", lineNo, err)
		}

		o := replayOutput{Line: lineNo, Aid: ev.Aid}
		var res sim.Result
		switch ev.Aid {
		case "quote":
			if ev.Quote == nil {
				log.Fatalf("第%d行缺少quote字段", lineNo)
			}
			res, err = eng.UpdateQuote(*ev.Quote)
		case "insert_order":
			if ev.InsertOrder == nil {
				log.Fatalf("第%d行缺少insert_order字段", lineNo)
			}
			res, err = eng.InsertOrder(*ev.InsertOrder)
		case "cancel_order":
			res = eng.CancelOrder(ev.InstrumentID, ev.OrderID)
			err = nil
		case "settle":
			res, _ = eng.Settle()
			err = nil
		default:
			log.Fatalf("第%d行未知aid: %s", lineNo, ev.Aid)
		}
		if err != nil {
			o.Error = err.Error()
		} else {
			o.Patches = res.Patches
			o.Events = res.Events
			sim.ApplyPatches(mirror, res.Patches)
		}
		if err := enc.Encode(o); err != nil {
			log.Fatalf("写出失败: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("读取事件流失败: %v", err)
	}

	// 末尾输出最终快照，并校验差分镜像与引擎状态一致
	final := eng.Snapshot()
	mirrorJSON, _ := json.Marshal(mirror)
	finalJSON, _ := json.Marshal(final)
	if string(mirrorJSON) != string(finalJSON) {
		fmt.Fprintln(os.Stderr, "警告: 差分镜像与引擎快照不一致")
	}
	if err := enc.Encode(map[string]any{"aid": "final_snapshot", "tree": final}); err != nil {
		log.Fatalf("写出失败: %v", err)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
