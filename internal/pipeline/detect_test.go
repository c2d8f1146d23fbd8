package pipeline

import "testing"

func TestDetectPriceList(t *testing.T) {
	res := DetectPriceList("Price list update", "045 Red Hammer $ 10.00\n999 Unknown Gadget $ 5.00", nil)
	if !res.IsPriceList {
		t.Fatalf("score=%v reason=%s", res.Score, res.Reason)
	}
	if res.Reason != "rules_positive" {
		t.Fatalf("reason=%s", res.Reason)
	}
}

func TestDetectRejectsUnrelatedMail(t *testing.T) {
	res := DetectPriceList("Lunch on Friday?", "See you at noon.", nil)
	if res.IsPriceList {
		t.Fatalf("score=%v", res.Score)
	}
	if res.Reason != "rules_negative" {
		t.Fatalf("reason=%s", res.Reason)
	}
}

func TestDetectAttachmentBoostsScore(t *testing.T) {
	without := DetectPriceList("", "nothing here", nil)
	with := DetectPriceList("", "nothing here", []string{"prices.xlsx"})
	if with.Score <= without.Score {
		t.Fatalf("with=%v without=%v", with.Score, without.Score)
	}
	// a nested message is not a readable attachment
	nested := DetectPriceList("", "nothing here", []string{"forwarded.eml"})
	if nested.Score != without.Score {
		t.Fatalf("nested=%v without=%v", nested.Score, without.Score)
	}
}

func TestDetectScoreCapped(t *testing.T) {
	text := "precio lista tarifa cost catalog price $ 1.00 $ 2.00"
	res := DetectPriceList("precio lista tarifa cost catalog price", text, []string{"full.xlsx"})
	if res.Score > 1 {
		t.Fatalf("score=%v", res.Score)
	}
}
