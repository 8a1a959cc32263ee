package app

import (
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/localizer/internal/config"
)

// FormatPoseMessage renders one pose topic payload as a console line.
func FormatPoseMessage(payload []byte) (string, error) {
	var msg PoseMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", errors.Wrap(err, "console: pose unmarshal")
	}
	return fmt.Sprintf(
		"[POSE]  X=%8.2f  Y=%8.2f  HEADING=%7.2f  particles=%d",
		msg.X, msg.Y, msg.Heading, msg.Particles,
	), nil
}

// RunConsoleMQTT prints every estimate published on the pose topic to out
// until done is closed.
func RunConsoleMQTT(cfg *config.Config, out io.Writer, logger *zap.Logger, done <-chan struct{}) error {
	client, err := ConnectMQTT(cfg, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	token := client.Subscribe(cfg.TopicPoseEstimate, 0, func(_ mqtt.Client, msg mqtt.Message) {
		line, err := FormatPoseMessage(msg.Payload())
		if err != nil {
			logger.Warn("bad pose message", zap.Error(err))
			return
		}
		fmt.Fprintln(out, line)
	})
	token.Wait()
	if token.Error() != nil {
		return errors.Wrapf(token.Error(), "mqtt: subscribe %s", cfg.TopicPoseEstimate)
	}
	logger.Info("subscribed", zap.String("topic", cfg.TopicPoseEstimate))

	<-done
	logger.Info("console shutting down")
	return nil
}
