// Package metrics は分類モデルの評価指標を提供する
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// checkLabels は yTrue と yPred が同じ長さの列ベクトルであることを確認する
func checkLabels(op string, yTrue, yPred mat.Matrix) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "labels must not be nil")
	}
	n, c := yTrue.Dims()
	m, d := yPred.Dims()
	if n == 0 {
		return 0, errors.NewModelError(op, "empty labels", errors.ErrEmptyData)
	}
	if c != 1 || d != 1 {
		return 0, errors.NewValueError(op, fmt.Sprintf("labels must be column vectors, got %d and %d columns", c, d))
	}
	if n != m {
		return 0, errors.NewDimensionError(op, n, m, 0)
	}
	return n, nil
}

// AccuracyScore は正解率（一致したラベルの割合）を計算する
func AccuracyScore(yTrue, yPred mat.Matrix) (float64, error) {
	n, err := checkLabels("AccuracyScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if int(yTrue.At(i, 0)) == int(yPred.At(i, 0)) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ConfusionMatrix は混同行列を計算する
// 行が正解ラベル、列が予測ラベルで、どちらも labels の順序に従う。
// labels が nil の場合は yTrue と yPred に現れる全ラベルを昇順で使う。
func ConfusionMatrix(yTrue, yPred mat.Matrix, labels []int) (*mat.Dense, []int, error) {
	n, err := checkLabels("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	if labels == nil {
		seen := make(map[int]struct{})
		for i := 0; i < n; i++ {
			seen[int(yTrue.At(i, 0))] = struct{}{}
			seen[int(yPred.At(i, 0))] = struct{}{}
		}
		for l := range seen {
			labels = append(labels, l)
		}
		sort.Ints(labels)
	}
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		ti, ok1 := index[int(yTrue.At(i, 0))]
		pi, ok2 := index[int(yPred.At(i, 0))]
		if ok1 && ok2 {
			cm.Set(ti, pi, cm.At(ti, pi)+1)
		}
	}
	return cm, labels, nil
}

// ClassMetrics はクラスごとの適合率・再現率・F1値
type ClassMetrics struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassificationReport はクラスごとの適合率・再現率・F1値を計算する
// 予測が一つもないクラスの適合率は UndefinedMetricWarning を出して0とする
func ClassificationReport(yTrue, yPred mat.Matrix) ([]ClassMetrics, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		return nil, err
	}
	k := len(labels)
	report := make([]ClassMetrics, k)
	for i := 0; i < k; i++ {
		tp := cm.At(i, i)
		predicted, actual := 0.0, 0.0
		for j := 0; j < k; j++ {
			predicted += cm.At(j, i)
			actual += cm.At(i, j)
		}

		cls := ClassMetrics{Label: labels[i], Support: int(actual)}
		if predicted == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision",
				fmt.Sprintf("no predicted samples for label %d", labels[i]), 0))
		} else {
			cls.Precision = tp / predicted
		}
		cls.Recall = errors.SafeDivide(tp, actual)
		cls.F1 = errors.SafeDivide(2*cls.Precision*cls.Recall, cls.Precision+cls.Recall)
		report[i] = cls
	}
	return report, nil
}

// FormatReport は ClassificationReport の結果を表形式の文字列にする
func FormatReport(report []ClassMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%8s %10s %10s %10s %10s\n", "label", "precision", "recall", "f1-score", "support")
	for _, r := range report {
		fmt.Fprintf(&b, "%8d %10.4f %10.4f %10.4f %10d\n", r.Label, r.Precision, r.Recall, r.F1, r.Support)
	}
	return b.String()
}
