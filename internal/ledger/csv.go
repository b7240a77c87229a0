package ledger

import (
	"encoding/csv"
	"os"
	"strconv"
)

func WriteLedgerCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"index",
		"day",
		"weekday",
		"hour",
		"period",
		"load_kwh",
		"control_kw",
		"action",
		"state_start_kwh",
		"state_end_kwh",
		"grid_draw_kwh",
		"energy_cost",
		"demand_cost",
		"cost",
		"cum_cost",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.Index),
			strconv.Itoa(r.Day),
			r.Weekday.String(),
			fmtFloat(r.Hour),
			r.Period.String(),
			fmtFloat(r.Load),
			fmtFloat(r.Control),
			string(r.Action),
			fmtFloat(r.StateStart),
			fmtFloat(r.StateEnd),
			fmtFloat(r.GridDraw),
			fmtFloat(r.EnergyCost),
			fmtFloat(r.DemandCost),
			fmtFloat(r.Cost),
			fmtFloat(r.CumCost),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
